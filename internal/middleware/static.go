package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 300"><rect width="200" height="300" fill="#f0f0f0"/><path d="M60 70h80v160H60z" fill="none" stroke="#999" stroke-width="6"/><path d="M60 70c20 10 60 10 80 0" fill="none" stroke="#999" stroke-width="6"/><text x="100" y="260" text-anchor="middle" font-family="Arial" font-size="14" fill="#666">NO COVER</text></svg>`

// StaticFileServer serves uploaded cover images, falling back to a
// placeholder SVG for missing files.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean(r.URL.Path))

		if _, err := os.Stat(path); err == nil {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(placeholderSVG))
	})
}
