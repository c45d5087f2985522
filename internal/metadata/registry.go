// Package metadata maps content-type tags to schema descriptors and
// classifies free-text source identifiers into those types.
package metadata

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

var ErrSchemaNotFound = errors.New("schema not found")

const (
	ContentTypeArticle = "article"
	ContentTypeBook    = "book"
	ContentTypeWebsite = "website"
)

// Schema describes the metadata fields expected for a content type.
type Schema struct {
	ContentType string
	Fields      []string
	Validate    func(map[string]string) error
}

// Registry holds schema descriptors keyed by content type. It is an
// explicit object passed to callers; Register overwrites by key so schemas
// can be replaced at runtime.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]Schema
}

func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]Schema)}
}

// NewDefaultRegistry returns a registry pre-loaded with the book, article
// and website schemas.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Schema{
		ContentType: ContentTypeBook,
		Fields:      []string{"title", "author", "isbn", "publisher", "published_year"},
		Validate:    requireFields("title", "author"),
	})
	r.Register(Schema{
		ContentType: ContentTypeArticle,
		Fields:      []string{"title", "author", "doi", "journal", "published_date"},
		Validate:    requireFields("title", "doi"),
	})
	r.Register(Schema{
		ContentType: ContentTypeWebsite,
		Fields:      []string{"title", "url", "site_name"},
		Validate:    requireFields("url"),
	})
	return r
}

// Register stores a schema, replacing any existing entry for the same
// content type.
func (r *Registry) Register(s Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.ContentType] = s
}

// Schema looks up the descriptor for a content type.
func (r *Registry) Schema(contentType string) (Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[contentType]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %s", ErrSchemaNotFound, contentType)
	}
	return s, nil
}

// ContentTypes returns the registered type tags.
func (r *Registry) ContentTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.schemas))
	for t := range r.schemas {
		types = append(types, t)
	}
	return types
}

// isbnPattern matches 10 or 13 digit ISBNs with optional separators. The
// final check strips separators and counts digits.
var isbnPattern = regexp.MustCompile(`^(?:97[89][-\s]?)?\d{1,5}[-\s]?\d+[-\s]?\d+[-\s]?[\dXx]$`)

// DetectContentType classifies a source identifier. Rules apply in order:
// DOI first, then ISBN, then website as the default.
func DetectContentType(source string) string {
	source = strings.TrimSpace(source)

	if strings.HasPrefix(source, "10.") || strings.Contains(source, "doi.org") {
		return ContentTypeArticle
	}

	if looksLikeISBN(source) {
		return ContentTypeBook
	}

	return ContentTypeWebsite
}

func looksLikeISBN(source string) bool {
	if !isbnPattern.MatchString(source) {
		return false
	}
	stripped := strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, source)
	return len(stripped) == 10 || len(stripped) == 13
}

func requireFields(required ...string) func(map[string]string) error {
	return func(fields map[string]string) error {
		for _, name := range required {
			if strings.TrimSpace(fields[name]) == "" {
				return fmt.Errorf("missing required field %q", name)
			}
		}
		return nil
	}
}
