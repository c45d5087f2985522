package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ipfsnut/bookmarks-backend/internal/metadata"
	"github.com/stretchr/testify/assert"
)

func TestMetadataService_ClassifyContent(t *testing.T) {
	service := NewMetadataService(metadata.NewDefaultRegistry())

	classify := func(t *testing.T, source string) (int, map[string]any) {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/content-type?source="+source, nil)
		w := httptest.NewRecorder()
		service.ClassifyContent(w, req)

		var body map[string]any
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return w.Code, body
	}

	t.Run("DOI classifies as article", func(t *testing.T) {
		code, body := classify(t, "10.1038%2Fnature12373")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "article", body["contentType"])
		assert.Contains(t, body["fields"], "doi")
	})

	t.Run("ISBN classifies as book", func(t *testing.T) {
		code, body := classify(t, "9780306406157")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "book", body["contentType"])
		assert.Contains(t, body["fields"], "isbn")
	})

	t.Run("anything else is a website", func(t *testing.T) {
		code, body := classify(t, "https:%2F%2Fexample.com%2Fpost")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "website", body["contentType"])
		assert.Contains(t, body["fields"], "url")
	})

	t.Run("missing source is a bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/content-type", nil)
		w := httptest.NewRecorder()
		service.ClassifyContent(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unregistered type after registry swap", func(t *testing.T) {
		empty := NewMetadataService(metadata.NewRegistry())
		req := httptest.NewRequest(http.MethodGet, "/content-type?source=9780306406157", nil)
		w := httptest.NewRecorder()
		empty.ClassifyContent(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
