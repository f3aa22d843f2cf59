// Package web embeds the built frontend (dist/) and provides an HTTP handler
// that serves it as a single-page application (SPA).
//
// In development the dist/ directory holds only a placeholder index — use
// the Vite dev server instead and point FRONTEND_URL at it.
package web

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

// appPrefix is the protected application mount point: requests below
// /app/ are resolved against the bundle root with the prefix stripped.
const appPrefix = "/app"

// SPAHandler returns an http.Handler that serves the embedded frontend.
// It serves static files from dist/, and falls back to index.html for any
// path that doesn't match a file (SPA client-side routing). It carries no
// authentication logic of its own; compose it behind the session gateway.
func SPAHandler() http.Handler {
	subFS, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}

	fileServer := http.FileServer(http.FS(subFS))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := resolvePath(r.URL.Path)

		// Serve the file directly when it exists in the embedded FS.
		if f, err := subFS.Open(path); err == nil {
			if closeErr := f.Close(); closeErr != nil {
				slog.Debug("web: failed to close embedded file", "path", path, "error", closeErr)
			}
			r.URL.Path = "/" + path
			fileServer.ServeHTTP(w, r)
			return
		}

		// Not found — serve index.html for SPA routing.
		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}

// resolvePath maps a request path to a bundle-relative file path: the /app
// mount prefix is stripped, and the bare roots map to the index document.
func resolvePath(p string) string {
	if p == "/" || p == appPrefix || p == appPrefix+"/" {
		return "index.html"
	}
	p = strings.TrimPrefix(p, appPrefix+"/")
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "index.html"
	}
	return p
}
