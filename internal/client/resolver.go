package client

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/config"
)

// EnvBaseURL variable de entorno con la URL base preferida
const EnvBaseURL = "ASISTENCIA_API_BASE"

const (
	defaultHealthTimeout = 2500 * time.Millisecond
	apiPath              = "/api/asistencia"
)

// candidatos locales conocidos
var localCandidates = []string{
	"http://localhost:3000" + apiPath,
	"http://127.0.0.1:3000" + apiPath,
}

var ErrNoCandidates = errors.New("no hay URLs candidatas para el servicio de asistencia")

// ResolverOptions fuentes de candidatos, en orden de prioridad
type ResolverOptions struct {
	Override      string
	EnvValue      string
	Origin        string
	Fallbacks     []string
	HealthTimeout time.Duration
}

// ResolverOptionsFromConfig arma las opciones desde la configuración del cliente y el entorno
func ResolverOptionsFromConfig(cfg *config.ClientConfig) ResolverOptions {
	return ResolverOptions{
		Override:      cfg.BaseURL,
		EnvValue:      os.Getenv(EnvBaseURL),
		Origin:        cfg.Origin,
		Fallbacks:     cfg.FallbackURLs,
		HealthTimeout: cfg.HealthTimeout,
	}
}

// Resolver descubre qué URL base del servicio responde.
//
// La URL resuelta se memoriza tras el primer sondeo exitoso; las llamadas
// concurrentes antes de esa resolución comparten un único sondeo.
type Resolver struct {
	candidates    []string
	healthTimeout time.Duration
	httpClient    *http.Client
	logger        *zap.Logger

	mu       sync.Mutex
	resolved string
	group    singleflight.Group
}

// NewResolver crea el resolvedor
func NewResolver(opts ResolverOptions, httpClient *http.Client, logger *zap.Logger) *Resolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	timeout := opts.HealthTimeout
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	return &Resolver{
		candidates:    buildCandidates(opts),
		healthTimeout: timeout,
		httpClient:    httpClient,
		logger:        logger,
	}
}

// Candidates lista ordenada y sin duplicados
func (r *Resolver) Candidates() []string {
	return append([]string(nil), r.candidates...)
}

// ResolveBaseURL devuelve la URL memorizada o sondea los candidatos
func (r *Resolver) ResolveBaseURL(ctx context.Context) (string, error) {
	r.mu.Lock()
	resolved := r.resolved
	r.mu.Unlock()
	if resolved != "" {
		return resolved, nil
	}
	return r.discoverShared(ctx)
}

// Rediscover descarta la URL memorizada y vuelve a sondear
func (r *Resolver) Rediscover(ctx context.Context) (string, error) {
	r.mu.Lock()
	r.resolved = ""
	r.mu.Unlock()
	return r.discoverShared(ctx)
}

func (r *Resolver) discoverShared(ctx context.Context) (string, error) {
	if len(r.candidates) == 0 {
		return "", ErrNoCandidates
	}

	// el sondeo compartido no se cancela si el primer llamador abandona
	discoverCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan("discover", func() (interface{}, error) {
		return r.discover(discoverCtx), nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.Val.(string), nil
	}
}

// discover prueba {base}/health en orden; si ninguno responde devuelve el primero
func (r *Resolver) discover(ctx context.Context) string {
	r.logger.Debug("sondeando URLs base", zap.Strings("candidates", r.candidates))

	for _, base := range r.candidates {
		if r.healthy(ctx, base) {
			r.mu.Lock()
			r.resolved = base
			r.mu.Unlock()
			r.logger.Debug("URL base resuelta", zap.String("base", base))
			return base
		}
	}

	fallback := r.candidates[0]
	r.logger.Warn("ningún health respondió, se usa el primer candidato", zap.String("base", fallback))
	return fallback
}

func (r *Resolver) healthy(ctx context.Context, base string) bool {
	ctx, cancel := context.WithTimeout(ctx, r.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Debug("health falló", zap.String("base", base), zap.Error(err))
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// buildCandidates normaliza (sin "/" final), descarta vacíos y duplicados conservando el orden
func buildCandidates(opts ResolverOptions) []string {
	raw := []string{opts.Override, opts.EnvValue}
	if origin := strings.TrimSpace(opts.Origin); origin != "" {
		raw = append(raw, strings.TrimRight(origin, "/")+apiPath)
	}
	raw = append(raw, localCandidates...)
	raw = append(raw, opts.Fallbacks...)

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, u := range raw {
		u = strings.TrimRight(strings.TrimSpace(u), "/")
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
