package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectContentType(t *testing.T) {
	t.Run("DOI prefix", func(t *testing.T) {
		assert.Equal(t, ContentTypeArticle, DetectContentType("10.1038/nature12373"))
	})

	t.Run("DOI URL", func(t *testing.T) {
		assert.Equal(t, ContentTypeArticle, DetectContentType("https://doi.org/10.1000/182"))
	})

	t.Run("ISBN-13", func(t *testing.T) {
		assert.Equal(t, ContentTypeBook, DetectContentType("978-0-306-40615-7"))
		assert.Equal(t, ContentTypeBook, DetectContentType("9780306406157"))
	})

	t.Run("ISBN-10", func(t *testing.T) {
		assert.Equal(t, ContentTypeBook, DetectContentType("0-306-40615-2"))
		assert.Equal(t, ContentTypeBook, DetectContentType("080442957X"))
	})

	t.Run("URL defaults to website", func(t *testing.T) {
		assert.Equal(t, ContentTypeWebsite, DetectContentType("https://example.com/post"))
	})

	t.Run("arbitrary text defaults to website", func(t *testing.T) {
		assert.Equal(t, ContentTypeWebsite, DetectContentType("some random note"))
		assert.Equal(t, ContentTypeWebsite, DetectContentType(""))
	})

	t.Run("DOI wins over ISBN-shaped input", func(t *testing.T) {
		// Classification order is DOI, then ISBN, then default.
		assert.Equal(t, ContentTypeArticle, DetectContentType("10.9780306406157"))
	})
}

func TestRegistry(t *testing.T) {
	t.Run("default registry has the three content types", func(t *testing.T) {
		r := NewDefaultRegistry()
		for _, contentType := range []string{ContentTypeBook, ContentTypeArticle, ContentTypeWebsite} {
			s, err := r.Schema(contentType)
			assert.NoError(t, err)
			assert.Equal(t, contentType, s.ContentType)
			assert.NotEmpty(t, s.Fields)
			assert.NotNil(t, s.Validate)
		}
		assert.Len(t, r.ContentTypes(), 3)
	})

	t.Run("unregistered type", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Schema("podcast")
		assert.ErrorIs(t, err, ErrSchemaNotFound)
	})

	t.Run("register overwrites by key", func(t *testing.T) {
		r := NewDefaultRegistry()
		r.Register(Schema{
			ContentType: ContentTypeBook,
			Fields:      []string{"title"},
			Validate:    func(map[string]string) error { return nil },
		})

		s, err := r.Schema(ContentTypeBook)
		assert.NoError(t, err)
		assert.Equal(t, []string{"title"}, s.Fields)
	})

	t.Run("book schema validation", func(t *testing.T) {
		r := NewDefaultRegistry()
		s, err := r.Schema(ContentTypeBook)
		assert.NoError(t, err)

		assert.NoError(t, s.Validate(map[string]string{"title": "Dune", "author": "Frank Herbert"}))
		assert.Error(t, s.Validate(map[string]string{"title": "Dune"}))
		assert.Error(t, s.Validate(map[string]string{"title": "  ", "author": "Frank Herbert"}))
	})
}
