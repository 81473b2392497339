// Package web serves the embedded route viewer for air-gapped deployment.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
)

//go:embed dist/*
var staticFiles embed.FS

const indexFile = "index.html"

// GetFileSystem returns the embedded filesystem rooted at dist.
func GetFileSystem() (fs.FS, error) {
	return fs.Sub(staticFiles, "dist")
}

// HasEmbeddedFiles reports whether the viewer was embedded into the binary.
func HasEmbeddedFiles() bool {
	staticFS, err := GetFileSystem()
	if err != nil {
		return false
	}
	_, err = fs.Stat(staticFS, indexFile)
	return err == nil
}

// RegisterStaticRoutes serves the viewer on every path the API does not claim.
// API routes must be registered first.
func RegisterStaticRoutes(e *echo.Echo) error {
	staticFS, err := GetFileSystem()
	if err != nil {
		return err
	}
	fileServer := http.FileServer(http.FS(staticFS))

	e.GET("/*", func(c echo.Context) error {
		name := strings.TrimPrefix(path.Clean(c.Request().URL.Path), "/")

		// Unknown API paths must not fall back to the viewer page.
		if name == "api" || strings.HasPrefix(name, "api/") {
			return echo.ErrNotFound
		}

		if name != "" && name != "." {
			if stat, err := fs.Stat(staticFS, name); err == nil && !stat.IsDir() {
				fileServer.ServeHTTP(c.Response(), c.Request())
				return nil
			}
		}
		return serveIndexHTML(c, staticFS)
	})

	return nil
}

// serveIndexHTML serves the viewer page for client-side routes
func serveIndexHTML(c echo.Context, staticFS fs.FS) error {
	content, err := fs.ReadFile(staticFS, indexFile)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "index.html not found")
	}
	return c.HTMLBlob(http.StatusOK, content)
}
