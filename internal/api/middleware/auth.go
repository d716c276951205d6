package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/pkg/jwt"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/pkg/response"
)

// RevocationChecker lista de tokens revocados (Redis)
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// JWTAuth verifica Authorization: Bearer <token>.
// revoked nil = sin lista de revocación; un error de Redis no bloquea la petición.
func JWTAuth(jwtMgr *jwt.Manager, revoked RevocationChecker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, 10002, "Falta el encabezado de autenticación")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, 10002, "Formato de autenticación inválido")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(parts[1])
		if err != nil {
			msg := "Token inválido"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Token expirado"
			}
			response.Unauthorized(c, 10002, msg)
			c.Abort()
			return
		}

		if revoked != nil && claims.ID != "" {
			isRevoked, err := revoked.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				logger.Warn("consulta de revocación falló, se permite la petición",
					zap.String("jti", claims.ID), zap.Error(err))
			} else if isRevoked {
				response.Unauthorized(c, 10002, "Token revocado")
				c.Abort()
				return
			}
		}

		c.Set("subject", claims.Subject)
		c.Set("permissions", claims.Permissions)

		c.Next()
	}
}

// RequirePermission exige al menos uno de los permisos indicados
func RequirePermission(perms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get("permissions")
		if !exists {
			response.Unauthorized(c, 10002, "No autenticado")
			c.Abort()
			return
		}

		granted, _ := v.([]string)
		for _, g := range granted {
			for _, p := range perms {
				if g == p {
					c.Next()
					return
				}
			}
		}

		response.Forbidden(c, 10003, "Permisos insuficientes")
		c.Abort()
	}
}
