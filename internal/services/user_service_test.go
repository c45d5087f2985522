package services

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mW "github.com/ipfsnut/bookmarks-backend/internal/middleware"
	"github.com/ipfsnut/bookmarks-backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestUserService_GetUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewUserService(db)

	t.Run("profile includes token balance", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("LEFT JOIN token_balances").
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "wallet_address", "username", "farcaster_id", "amount", "last_login", "created_at", "updated_at"}).
				AddRow("u1", "0xabc", "reader", "", 42, now, now, now))

		req := httptest.NewRequest(http.MethodGet, "/user", nil)
		req = req.WithContext(mW.WithUserID(req.Context(), "u1"))
		w := httptest.NewRecorder()
		service.GetUser(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var user models.User
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
		assert.Equal(t, "u1", user.ID)
		assert.Equal(t, "reader", user.Username)
		assert.Equal(t, int64(42), user.TokenBalance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user gets 404", func(t *testing.T) {
		mock.ExpectQuery("LEFT JOIN token_balances").
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		req := httptest.NewRequest(http.MethodGet, "/user", nil)
		req = req.WithContext(mW.WithUserID(req.Context(), "ghost"))
		w := httptest.NewRecorder()
		service.GetUser(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unauthenticated gets 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/user", nil)
		w := httptest.NewRecorder()
		service.GetUser(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestUserService_UpdateUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewUserService(db)

	put := func(body any, userID string) *httptest.ResponseRecorder {
		payload, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPut, "/user", bytes.NewReader(payload))
		if userID != "" {
			req = req.WithContext(mW.WithUserID(req.Context(), userID))
		}
		w := httptest.NewRecorder()
		service.UpdateUser(w, req)
		return w
	}

	t.Run("updates username", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("UPDATE users SET").
			WithArgs("booklover", "u1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "wallet_address", "username", "farcaster_id", "last_login", "created_at", "updated_at"}).
				AddRow("u1", "0xabc", "booklover", "", now, now, now))

		w := put(map[string]string{"username": "booklover"}, "u1")

		assert.Equal(t, http.StatusOK, w.Code)
		var user models.User
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
		assert.Equal(t, "booklover", user.Username)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty patch gets 400", func(t *testing.T) {
		w := put(map[string]string{}, "u1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("immutable field gets 400", func(t *testing.T) {
		w := put(map[string]string{"wallet_address": "0xhacked"}, "u1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unauthenticated gets 401", func(t *testing.T) {
		w := put(map[string]string{"username": "booklover"}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
