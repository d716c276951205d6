package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/pkg/response"
)

// CallerID sujeto del token inyectado por JWTAuth.
// Vacío cuando la autenticación está deshabilitada.
func CallerID(c *gin.Context) string {
	v, exists := c.Get("subject")
	if !exists {
		return ""
	}
	s, _ := v.(string)
	return s
}

// MustGetWorkerID lee :trabajadorId; escribe 400 y devuelve false si no es un entero positivo.
func MustGetWorkerID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("trabajadorId"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, response.CodeValidation, "trabajadorId debe ser un entero positivo")
		return 0, false
	}
	return id, true
}
