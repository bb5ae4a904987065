package webui

import (
	"net/http"

	"zexplorer/webui/static"
)

var staticFiles = http.FileServer(http.FS(static.FS))

// serveIndex serves the embedded dashboard page.
func serveIndex(w http.ResponseWriter, r *http.Request) {
	data, err := static.FS.ReadFile("index.html")
	if err != nil {
		http.Error(w, "dashboard missing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// serveStatic serves css/ and js/ assets from the embedded filesystem.
func serveStatic(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "max-age=3600")
	staticFiles.ServeHTTP(w, r)
}
