package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ipfsnut/bookmarks-backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func lookupBisac(t *testing.T, service *BisacService, query string) (int, []models.BisacCode) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/bisac-codes?"+query, nil)
	w := httptest.NewRecorder()
	service.LookupBisacCodes(w, req)

	var resp struct {
		BisacCodes []models.BisacCode `json:"bisacCodes"`
	}
	if w.Code == http.StatusOK {
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp.BisacCodes
}

func TestBisacService_LookupBisacCodes(t *testing.T) {
	service, err := NewBisacService()
	assert.NoError(t, err)

	t.Run("search by term", func(t *testing.T) {
		code, results := lookupBisac(t, service, "type=search&q=fiction")
		assert.Equal(t, http.StatusOK, code)
		assert.NotEmpty(t, results)
		for _, c := range results {
			assert.Contains(t, c.Label, "FICTION")
		}
	})

	t.Run("search matches codes too", func(t *testing.T) {
		code, results := lookupBisac(t, service, "type=search&q=FIC000000")
		assert.Equal(t, http.StatusOK, code)
		assert.Len(t, results, 1)
		assert.Equal(t, "FIC000000", results[0].Code)
	})

	t.Run("categories are distinct and sorted", func(t *testing.T) {
		code, results := lookupBisac(t, service, "type=categories&limit=200")
		assert.Equal(t, http.StatusOK, code)
		assert.NotEmpty(t, results)

		seen := map[string]bool{}
		for i, c := range results {
			assert.False(t, seen[c.Category], "duplicate category %s", c.Category)
			seen[c.Category] = true
			if i > 0 {
				assert.LessOrEqual(t, results[i-1].Category, c.Category)
			}
		}
	})

	t.Run("by_category", func(t *testing.T) {
		code, results := lookupBisac(t, service, "type=by_category&category=FICTION")
		assert.Equal(t, http.StatusOK, code)
		assert.NotEmpty(t, results)
		for _, c := range results {
			assert.Equal(t, "FICTION", c.Category)
		}
	})

	t.Run("by_codes", func(t *testing.T) {
		code, results := lookupBisac(t, service, "type=by_codes&codes=FIC000000,COM051460")
		assert.Equal(t, http.StatusOK, code)
		assert.Len(t, results, 2)
	})

	t.Run("limit is respected", func(t *testing.T) {
		code, results := lookupBisac(t, service, "type=search&limit=3")
		assert.Equal(t, http.StatusOK, code)
		assert.Len(t, results, 3)
	})

	t.Run("unknown type gets 400", func(t *testing.T) {
		code, _ := lookupBisac(t, service, "type=bogus")
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("repeated query is served from cache", func(t *testing.T) {
		_, first := lookupBisac(t, service, "type=search&q=history")
		_, second := lookupBisac(t, service, "type=search&q=history")
		assert.Equal(t, first, second)
	})
}
