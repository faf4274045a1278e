package htdocs

import (
	"embed"
	"net/http"
)

//go:embed index.html
var static embed.FS

// Handler serves the bundled chat page
func Handler() http.Handler {
	return http.FileServer(http.FS(static))
}
