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

func bookmarkRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "title", "author", "description", "cover_url", "created_at", "updated_at"})
}

func TestBookmarkService_ListBookmarks(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBookmarkService(db, nil)

	t.Run("public listing", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("FROM bookmarks ORDER BY created_at DESC LIMIT \\$1").
			WithArgs(50).
			WillReturnRows(bookmarkRows().
				AddRow("b2", "u2", "Dune", "Frank Herbert", "", "", now, now).
				AddRow("b1", "u1", "Ulysses", "James Joyce", "a novel", "", now.Add(-time.Hour), now.Add(-time.Hour)))

		req := httptest.NewRequest(http.MethodGet, "/bookmarks", nil)
		w := httptest.NewRecorder()
		service.ListBookmarks(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Bookmarks []models.Bookmark `json:"bookmarks"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Bookmarks, 2)
		assert.Equal(t, "Dune", resp.Bookmarks[0].Title)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("single bookmark by id", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("FROM bookmarks WHERE id = \\$1").
			WithArgs("b1").
			WillReturnRows(bookmarkRows().AddRow("b1", "u1", "Ulysses", "James Joyce", "", "", now, now))

		req := httptest.NewRequest(http.MethodGet, "/bookmarks?id=b1", nil)
		w := httptest.NewRecorder()
		service.ListBookmarks(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Bookmark models.Bookmark `json:"bookmark"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "b1", resp.Bookmark.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown id gets 404", func(t *testing.T) {
		mock.ExpectQuery("FROM bookmarks WHERE id = \\$1").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		req := httptest.NewRequest(http.MethodGet, "/bookmarks?id=missing", nil)
		w := httptest.NewRecorder()
		service.ListBookmarks(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("userOnly without auth gets 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/bookmarks?userOnly=true", nil)
		w := httptest.NewRecorder()
		service.ListBookmarks(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("userOnly filters to the caller", func(t *testing.T) {
		mock.ExpectQuery("WHERE user_id = \\$1 ORDER BY created_at DESC LIMIT \\$2").
			WithArgs("u1", 50).
			WillReturnRows(bookmarkRows())

		req := httptest.NewRequest(http.MethodGet, "/bookmarks?userOnly=true", nil)
		req = req.WithContext(mW.WithUserID(req.Context(), "u1"))
		w := httptest.NewRecorder()
		service.ListBookmarks(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("limit is capped", func(t *testing.T) {
		mock.ExpectQuery("ORDER BY title ASC LIMIT \\$1").
			WithArgs(100).
			WillReturnRows(bookmarkRows())

		req := httptest.NewRequest(http.MethodGet, "/bookmarks?limit=5000&sortBy=title", nil)
		w := httptest.NewRecorder()
		service.ListBookmarks(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookmarkService_CreateBookmark(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBookmarkService(db, nil)

	post := func(body any, userID string) *httptest.ResponseRecorder {
		payload, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/bookmarks", bytes.NewReader(payload))
		if userID != "" {
			req = req.WithContext(mW.WithUserID(req.Context(), userID))
		}
		w := httptest.NewRecorder()
		service.CreateBookmark(w, req)
		return w
	}

	t.Run("creates a bookmark", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("INSERT INTO bookmarks").
			WithArgs(sqlmock.AnyArg(), "u1", "Dune", "Frank Herbert", "", "").
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		w := post(CreateBookmarkRequest{Title: "Dune", Author: "Frank Herbert"}, "u1")

		assert.Equal(t, http.StatusCreated, w.Code)
		var created models.Bookmark
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		assert.Equal(t, "Dune", created.Title)
		assert.Equal(t, "u1", created.UserID)
		assert.NotEmpty(t, created.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing title gets 400", func(t *testing.T) {
		w := post(map[string]string{"author": "Frank Herbert"}, "u1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unauthenticated gets 401", func(t *testing.T) {
		w := post(CreateBookmarkRequest{Title: "Dune", Author: "Frank Herbert"}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestBookmarkService_UpdateBookmark(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBookmarkService(db, nil)

	put := func(id string, body any, userID string) *httptest.ResponseRecorder {
		payload, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPut, "/bookmarks?id="+id, bytes.NewReader(payload))
		if userID != "" {
			req = req.WithContext(mW.WithUserID(req.Context(), userID))
		}
		w := httptest.NewRecorder()
		service.UpdateBookmark(w, req)
		return w
	}

	t.Run("owner can update", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT user_id FROM bookmarks WHERE id = \\$1").
			WithArgs("b1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1"))
		mock.ExpectQuery("UPDATE bookmarks SET").
			WithArgs("New Title", "b1").
			WillReturnRows(bookmarkRows().AddRow("b1", "u1", "New Title", "James Joyce", "", "", now, now))

		w := put("b1", map[string]string{"title": "New Title"}, "u1")

		assert.Equal(t, http.StatusOK, w.Code)
		var updated models.Bookmark
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
		assert.Equal(t, "New Title", updated.Title)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-owner gets 403", func(t *testing.T) {
		mock.ExpectQuery("SELECT user_id FROM bookmarks WHERE id = \\$1").
			WithArgs("b1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1"))

		w := put("b1", map[string]string{"title": "Hijacked"}, "u2")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing bookmark gets 404", func(t *testing.T) {
		mock.ExpectQuery("SELECT user_id FROM bookmarks WHERE id = \\$1").
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		w := put("ghost", map[string]string{"title": "x"}, "u1")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("empty patch gets 400", func(t *testing.T) {
		w := put("b1", map[string]string{}, "u1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown field gets 400", func(t *testing.T) {
		w := put("b1", map[string]string{"user_id": "u9"}, "u1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBookmarkService_DeleteBookmark(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewBookmarkService(db, nil)

	del := func(id, userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, "/bookmarks?id="+id, nil)
		if userID != "" {
			req = req.WithContext(mW.WithUserID(req.Context(), userID))
		}
		w := httptest.NewRecorder()
		service.DeleteBookmark(w, req)
		return w
	}

	t.Run("owner can delete", func(t *testing.T) {
		mock.ExpectQuery("SELECT user_id FROM bookmarks WHERE id = \\$1").
			WithArgs("b1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1"))
		mock.ExpectExec("DELETE FROM bookmarks WHERE id = \\$1").
			WithArgs("b1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := del("b1", "u1")

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]bool
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp["success"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-owner gets 403", func(t *testing.T) {
		mock.ExpectQuery("SELECT user_id FROM bookmarks WHERE id = \\$1").
			WithArgs("b1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1"))

		w := del("b1", "u2")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing bookmark gets 404", func(t *testing.T) {
		mock.ExpectQuery("SELECT user_id FROM bookmarks WHERE id = \\$1").
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		w := del("ghost", "u1")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
