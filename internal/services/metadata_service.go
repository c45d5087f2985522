package services

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ipfsnut/bookmarks-backend/internal/metadata"
)

// MetadataService exposes content-type classification and schema lookup.
type MetadataService struct {
	registry *metadata.Registry
}

func NewMetadataService(registry *metadata.Registry) *MetadataService {
	return &MetadataService{registry: registry}
}

// ClassifyContent classifies a source identifier and returns its schema
// @Summary Classify content source
// @Description Classify a free-text source identifier (DOI, ISBN or URL) and return the metadata fields expected for that content type
// @Tags metadata
// @Produce json
// @Param source query string true "Source identifier"
// @Success 200 {object} object{contentType=string,fields=[]string}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /content-type [get]
func (s *MetadataService) ClassifyContent(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		SendErrorResponse(w, "Missing source parameter", http.StatusBadRequest, nil)
		return
	}

	contentType := metadata.DetectContentType(source)

	schema, err := s.registry.Schema(contentType)
	if err != nil {
		if errors.Is(err, metadata.ErrSchemaNotFound) {
			SendErrorResponse(w, "No schema registered for content type", http.StatusNotFound, nil)
			return
		}
		SendErrorResponse(w, "Failed to look up schema", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"contentType": contentType,
		"fields":      schema.Fields,
	})
}
