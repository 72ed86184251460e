package handler

import (
	"net/http"
	"strings"
)

// NewFileServer serves objects of local storage under prefix. Directory
// listings are refused.
func NewFileServer(prefix, basePath string) http.Handler {
	files := http.StripPrefix(prefix, http.FileServer(http.Dir(basePath)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		files.ServeHTTP(w, r)
	})
}
