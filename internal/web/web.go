// Package web embeds the browser half of the widget.
package web

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
)

//go:embed static
var staticFS embed.FS

// Assets returns the embedded static tree rooted at static/.
func Assets() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// RegisterRoutes serves the widget page and its assets.
func RegisterRoutes(r chi.Router) {
	assets := Assets()
	files := http.FileServer(http.FS(assets))

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.ServeFileFS(w, req, assets, "index.html")
	})
	r.Handle("/static/*", http.StripPrefix("/static/", files))
}
