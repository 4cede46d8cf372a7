package swaggerui

import (
	"net/http"

	swgui "github.com/swaggest/swgui/v5"
)

// Handler returns a Swagger UI for the tag API mounted at basePath.
func Handler(basePath, specPath string) http.Handler {
	return swgui.New("Tagsmith API", specPath, basePath)
}
