package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Pret-a-LLOD/Fintan/version"
)

// Version reports build information.
func Version() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Get())
	}
}
