package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/pkg/response"
)

// BodyLimit límite global del cuerpo de la petición (p. ej. 1<<20 = 1MB).
// Peticiones con Content-Length conocido se rechazan antes de leer el cuerpo.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "Cuerpo de la petición demasiado grande")
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()

		if c.IsAborted() || c.Writer.Written() {
			return
		}
		for _, err := range c.Errors {
			var mbe *http.MaxBytesError
			if errors.As(err.Err, &mbe) {
				response.Error(c, http.StatusRequestEntityTooLarge, 10005, "Cuerpo de la petición demasiado grande")
				return
			}
		}
	}
}
