package handlers

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed docs/openapi.yaml
var openAPIDocument []byte

// APIDocs serves the OpenAPI description of the routes in Register.
func (h HandlerSet) APIDocs(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", openAPIDocument)
}
