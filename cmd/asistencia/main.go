package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/config"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/client"
	applogger "github.com/CristhianMorales19/sistema-gestion-agricola-sub003/pkg/logger"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/pkg/redis"
)

// app dependencias compartidas por los subcomandos
type app struct {
	configPath string
	baseURL    string
	token      string
	offline    bool

	cfg    *config.Config
	logger *zap.Logger
	client *client.Client
	queue  *client.Queue
	closer func()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "asistencia",
		Short:         "Registro de asistencia de trabajadores con cola offline",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "ruta del archivo de configuración")
	flags.StringVar(&a.baseURL, "base-url", "", "URL base del servicio (tiene prioridad sobre la configuración)")
	flags.StringVar(&a.token, "token", "", "bearer token (por defecto client.token)")
	flags.BoolVar(&a.offline, "offline", false, "forzar modo sin conexión")

	root.AddCommand(
		newEntryCmd(a),
		newExitCmd(a),
		newSyncCmd(a),
		newWorkersCmd(a),
		newTodayCmd(a),
		newPendingCmd(a),
		newQueueCmd(a),
	)
	return root
}

// init carga configuración y arma resolvedor, cola y cliente
func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("no se pudo cargar la configuración: %w", err)
	}
	a.cfg = cfg

	// stdout queda para la salida de los comandos
	logger, err := applogger.NewLoggerTo(&cfg.Log, zapcore.AddSync(os.Stderr))
	if err != nil {
		return fmt.Errorf("no se pudo inicializar el logger: %w", err)
	}
	a.logger = logger

	clientCfg := cfg.Client
	if a.baseURL != "" {
		clientCfg.BaseURL = a.baseURL
	}
	if a.token != "" {
		clientCfg.Token = a.token
	}

	store, closer, err := a.newStore(&clientCfg.Queue)
	if err != nil {
		return err
	}
	a.closer = closer

	httpClient := &http.Client{Timeout: clientCfg.RequestTimeout}
	resolver := client.NewResolver(client.ResolverOptionsFromConfig(&clientCfg), httpClient, logger)
	a.queue = client.NewQueue(store)

	conn := client.AlwaysOnline
	if a.offline {
		conn = client.ConnectivityFunc(func() bool { return false })
	}
	a.client = client.New(resolver, a.queue, client.Options{
		HTTPClient:   httpClient,
		Tokens:       client.StaticToken(clientCfg.Token),
		Connectivity: conn,
	}, logger)
	return nil
}

func (a *app) newStore(cfg *config.QueueConfig) (client.Store, func(), error) {
	switch cfg.Backend {
	case "redis":
		rdb, err := redis.NewClient(&a.cfg.Redis, a.logger)
		if err != nil {
			return nil, nil, err
		}
		return client.NewRedisStore(rdb, cfg.StorageKey, a.logger), func() { _ = rdb.Close() }, nil
	default:
		return client.NewFileStore(cfg.Path, a.logger), func() {}, nil
	}
}

func (a *app) close() {
	if a.closer != nil {
		a.closer()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
