package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/config"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/api/handler"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/api/router"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/repository"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/service"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/pkg/database"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/pkg/jwt"
	applogger "github.com/CristhianMorales19/sistema-gestion-agricola-sub003/pkg/logger"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "ruta del archivo de configuración")
	flag.Parse()

	// 1. configuración
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "no se pudo cargar la configuración: %v\n", err)
		os.Exit(1)
	}

	// 2. logger
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "no se pudo inicializar el logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("iniciando servicio de asistencia",
		zap.Int("port", cfg.Server.Port),
		zap.String("base_path", cfg.Server.BasePath),
		zap.String("timezone", cfg.Attendance.Timezone),
		zap.Bool("auth", cfg.Auth.Enabled),
	)

	// 3. base de datos y migraciones
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("conexión a la base de datos falló", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("no se pudo obtener sql.DB", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("migraciones fallaron", zap.Error(err))
	}

	// 4. Redis opcional: sin él no hay lista de revocación y el rate limit es local
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis no disponible, se continúa sin revocación compartida", zap.Error(err))
		rdb = nil
	}

	// 5. tokens
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 6. Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc, err := service.NewService(cfg, repo, logger)
	if err != nil {
		logger.Fatal("inicialización de servicios falló", zap.Error(err))
	}
	h := handler.NewHandler(svc)

	// 7. rutas
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	// 8. servidor HTTP con cierre ordenado
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("servidor HTTP escuchando", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("servidor HTTP terminó con error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("señal recibida, cerrando", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("cierre del servidor con error", zap.Error(err))
	}

	if err := sqlDB.Close(); err != nil {
		logger.Warn("cierre de la base de datos con error", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}

	logger.Info("servidor detenido")
}
