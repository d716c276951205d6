package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/config"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/api/handler"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/api/middleware"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/pkg/jwt"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/pkg/redis"
)

// Permisos emitidos por el proveedor de identidad
const (
	PermRegister = "asistencia:register"
	PermReadAll  = "asistencia:read:all"
	PermReports  = "asistencia:reports"
)

// Setup construye el motor Gin. rdb puede ser nil (Redis no disponible).
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	// ── middleware global ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	var (
		revoked middleware.RevocationChecker
		shared  middleware.SlidingWindow
	)
	if rdb != nil {
		revoked = rdb
		shared = rdb
	}

	// sin permisos cuando auth está deshabilitado
	require := func(perms ...string) gin.HandlerFunc {
		if !cfg.Auth.Enabled {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RequirePermission(perms...)
	}

	api := r.Group(cfg.Server.BasePath)
	{
		// sonda del resolvedor de endpoints, siempre pública
		api.GET("/health", h.Attendance.Health)

		protected := api.Group("")
		if cfg.Auth.Enabled {
			protected.Use(middleware.JWTAuth(jwtMgr, revoked, logger))
		}
		{
			protected.GET("/trabajadores-activos", require(PermRegister, PermReadAll), h.Attendance.ListActiveWorkers)
			protected.GET("/entradas-hoy", require(PermRegister, PermReadAll), h.Attendance.ListTodayEntries)
			protected.GET("/pendientes-salida", require(PermRegister, PermReadAll), h.Attendance.ListPendingExits)
			protected.GET("/estado/:trabajadorId", require(PermRegister, PermReadAll), h.Attendance.WorkerDayStatus)
			protected.GET("/historial/:trabajadorId", require(PermReadAll), h.Attendance.WorkerHistory)
			protected.GET("/export", require(PermReports), h.Export.ExportDay)

			writes := protected.Group("")
			writes.Use(middleware.RateLimit(shared, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window, logger))
			{
				writes.POST("/entrada", require(PermRegister), h.Attendance.RegisterEntry)
				writes.POST("/salida", require(PermRegister), h.Attendance.RegisterExit)
			}
		}
	}

	return r
}
