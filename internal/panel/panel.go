package panel

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

//go:embed web/*
var content embed.FS

// Handler returns an http.Handler serving the control panel.
//
// When dir names an existing directory its files are served instead of the
// embedded copy. Requests for paths that do not exist fall back to
// index.html. Panics if the embedded assets are missing (build error).
func Handler(dir string) http.Handler {
	assets := assetFS(dir)
	files := http.FileServer(assets)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")

		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name != "" && !exists(assets, name) {
			r.URL.Path = "/"
		}
		files.ServeHTTP(w, r)
	})
}

func assetFS(dir string) http.FileSystem {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return http.Dir(dir)
		}
	}

	web, err := fs.Sub(content, "web")
	if err != nil {
		panic(fmt.Sprintf("panel: loading embedded assets: %v", err))
	}
	return http.FS(web)
}

func exists(assets http.FileSystem, name string) bool {
	f, err := assets.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	return err == nil && !info.IsDir()
}
