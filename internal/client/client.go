package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/dto"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/pkg/response"
)

// ── errores del cliente ──

var (
	ErrOfflineExitUnsupported = errors.New("Sin conexión: no se puede registrar salida offline")
	ErrDuplicateEntry         = errors.New("ya existe una entrada registrada hoy para este trabajador")
	ErrNoOpenEntry            = errors.New("no existe entrada pendiente de salida para hoy")
	ErrAlreadyClosed          = errors.New("la salida ya fue registrada")
	ErrInvalidExitTime        = errors.New("la hora de salida es anterior a la de entrada")
	ErrWorkerNotFound         = errors.New("trabajador no encontrado o inactivo")
	ErrValidation             = errors.New("solicitud rechazada por validación")
	ErrUnauthorized           = errors.New("no autorizado")
	ErrRateLimited            = errors.New("demasiadas peticiones")
)

// APIError rechazo de aplicación (respuesta HTTP no 2xx)
type APIError struct {
	Status  int
	Code    int
	Message string
	Details string
	URL     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d) -> %s", e.Message, e.Status, e.URL)
}

// Is permite errors.Is(err, ErrDuplicateEntry) y similares
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrDuplicateEntry:
		return e.Code == response.CodeDuplicateEntry
	case ErrNoOpenEntry:
		return e.Code == response.CodeNoOpenEntry
	case ErrAlreadyClosed:
		return e.Code == response.CodeAlreadyClosed
	case ErrInvalidExitTime:
		return e.Code == response.CodeInvalidExit
	case ErrWorkerNotFound:
		return e.Code == response.CodeWorkerNotFound
	case ErrValidation:
		return e.Status == http.StatusBadRequest
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

// TransportError la petición no obtuvo respuesta (DNS, conexión, timeout)
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sin respuesta de %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ── colaboradores ──

// Connectivity señal de red disponible
type Connectivity interface {
	Online() bool
}

// ConnectivityFunc adapta una función a Connectivity
type ConnectivityFunc func() bool

func (f ConnectivityFunc) Online() bool { return f() }

// AlwaysOnline sin señal de red: se intenta siempre y el fallo de transporte decide
var AlwaysOnline Connectivity = ConnectivityFunc(func() bool { return true })

// TokenSource provee el bearer token de cada llamada; "" = sin Authorization
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken token fijo (configuración / variable de entorno)
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// ── Client ──

// SubmitResult resultado de un registro; Offline indica que quedó en cola
type SubmitResult struct {
	Offline bool                    `json:"offline"`
	Result  *dto.AttendanceResponse `json:"resultado,omitempty"`
}

// Options dependencias opcionales del cliente
type Options struct {
	HTTPClient   *http.Client
	Tokens       TokenSource
	Connectivity Connectivity
}

// Client punto de entrada para registrar asistencia con soporte offline
type Client struct {
	resolver   *Resolver
	queue      *Queue
	httpClient *http.Client
	tokens     TokenSource
	conn       Connectivity
	logger     *zap.Logger

	syncNow chan struct{}
}

// New crea el cliente
func New(resolver *Resolver, queue *Queue, opts Options, logger *zap.Logger) *Client {
	c := &Client{
		resolver:   resolver,
		queue:      queue,
		httpClient: opts.HTTPClient,
		tokens:     opts.Tokens,
		conn:       opts.Connectivity,
		logger:     logger,
		syncNow:    make(chan struct{}, 1),
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.tokens == nil {
		c.tokens = StaticToken("")
	}
	if c.conn == nil {
		c.conn = AlwaysOnline
	}
	return c
}

// SubmitEntry registra la entrada; sin red, ante un fallo de transporte o
// un 429 del servidor la encola
func (c *Client) SubmitEntry(ctx context.Context, req dto.RegisterEntryRequest) (*SubmitResult, error) {
	if !c.conn.Online() {
		return c.enqueue(ctx, req, "sin conexión")
	}

	rec, err := c.postEntry(ctx, req)
	if err != nil {
		var te *TransportError
		switch {
		case errors.As(err, &te):
			c.logger.Warn("fallo de transporte, la entrada pasa a la cola offline",
				zap.Int64("worker_id", req.WorkerID), zap.Error(err))
			return c.enqueue(ctx, req, "fallo de transporte")
		case errors.Is(err, ErrRateLimited):
			c.logger.Warn("límite de peticiones alcanzado, la entrada pasa a la cola offline",
				zap.Int64("worker_id", req.WorkerID))
			return c.enqueue(ctx, req, "límite de peticiones")
		}
		return nil, err
	}
	return &SubmitResult{Offline: false, Result: rec}, nil
}

func (c *Client) enqueue(ctx context.Context, req dto.RegisterEntryRequest, reason string) (*SubmitResult, error) {
	item, err := c.queue.Enqueue(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("no se pudo guardar la entrada en la cola offline: %w", err)
	}
	c.logger.Info("entrada encolada",
		zap.Int64("worker_id", req.WorkerID),
		zap.Int64("ts", item.EnqueuedAt),
		zap.String("reason", reason))
	return &SubmitResult{Offline: true}, nil
}

// SubmitExit registra la salida; no hay camino offline
func (c *Client) SubmitExit(ctx context.Context, req dto.RegisterExitRequest) (*SubmitResult, error) {
	if !c.conn.Online() {
		return nil, ErrOfflineExitUnsupported
	}

	var rec dto.AttendanceResponse
	if err := c.do(ctx, http.MethodPost, "/salida", req, &rec); err != nil {
		return nil, err
	}
	return &SubmitResult{Offline: false, Result: &rec}, nil
}

// SyncPending drena la cola por el mismo camino que SubmitEntry.
// Un DuplicateEntry cuenta como atendido.
func (c *Client) SyncPending(ctx context.Context) (int, error) {
	if !c.conn.Online() {
		return 0, nil
	}

	n, err := c.queue.Drain(ctx, func(ctx context.Context, item QueuedEntry) error {
		_, err := c.postEntry(ctx, item.RegisterEntryRequest)
		if errors.Is(err, ErrDuplicateEntry) {
			c.logger.Info("entrada encolada ya registrada en el servidor",
				zap.Int64("worker_id", item.WorkerID), zap.Int64("ts", item.EnqueuedAt))
			return nil
		}
		return err
	})
	if n > 0 {
		c.logger.Info("cola offline sincronizada", zap.Int("sent", n))
	}
	if err != nil {
		c.logger.Warn("sincronización detenida", zap.Int("sent", n), zap.Error(err))
	}
	return n, err
}

// NotifyOnline solicita una sincronización inmediata a RunAutoSync
func (c *Client) NotifyOnline() {
	select {
	case c.syncNow <- struct{}{}:
	default:
	}
}

const defaultSyncInterval = 15 * time.Second

// RunAutoSync sincroniza cada interval y en cada NotifyOnline hasta que ctx termine
func (c *Client) RunAutoSync(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-c.syncNow:
		}

		n, err := c.queue.Len(ctx)
		if err != nil {
			c.logger.Warn("lectura de la cola offline falló", zap.Error(err))
			continue
		}
		if n == 0 {
			continue
		}
		_, _ = c.SyncPending(ctx)
	}
}

// Pending elementos en la cola offline
func (c *Client) Pending(ctx context.Context) ([]QueuedEntry, error) {
	return c.queue.Pending(ctx)
}

// ── listados: lista vacía ante cualquier fallo ──

// ListActiveWorkers trabajadores activos
func (c *Client) ListActiveWorkers(ctx context.Context) []dto.ActiveWorkerResponse {
	var out []dto.ActiveWorkerResponse
	c.list(ctx, "/trabajadores-activos", &out)
	if out == nil {
		out = []dto.ActiveWorkerResponse{}
	}
	return out
}

// ListTodayEntries entradas del día
func (c *Client) ListTodayEntries(ctx context.Context) []dto.TodayEntryResponse {
	var out []dto.TodayEntryResponse
	c.list(ctx, "/entradas-hoy", &out)
	if out == nil {
		out = []dto.TodayEntryResponse{}
	}
	return out
}

// ListPendingExits entradas sin salida
func (c *Client) ListPendingExits(ctx context.Context) []dto.PendingExitResponse {
	var out []dto.PendingExitResponse
	c.list(ctx, "/pendientes-salida", &out)
	if out == nil {
		out = []dto.PendingExitResponse{}
	}
	return out
}

func (c *Client) list(ctx context.Context, path string, out interface{}) {
	if err := c.do(ctx, http.MethodGet, path, nil, out); err != nil {
		c.logger.Debug("listado no disponible", zap.String("path", path), zap.Error(err))
	}
}

// ── transporte ──

func (c *Client) postEntry(ctx context.Context, req dto.RegisterEntryRequest) (*dto.AttendanceResponse, error) {
	var rec dto.AttendanceResponse
	if err := c.do(ctx, http.MethodPost, "/entrada", req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// envelope cuerpo común de respuesta del servicio
type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Details string          `json:"details"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	base, err := c.resolver.ResolveBaseURL(ctx)
	if err != nil {
		return err
	}
	url := base + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("no se pudo obtener el token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{URL: url, Err: err}
	}

	c.logger.Debug("respuesta del servicio",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, URL: url}
		if decodeErr == nil {
			apiErr.Code = env.Code
			apiErr.Details = env.Details
			apiErr.Message = firstNonEmpty(env.Error, env.Message)
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(http.StatusText(resp.StatusCode))
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return decodeErr
	}
	if decodeErr != nil {
		return fmt.Errorf("respuesta ilegible de %s: %w", url, decodeErr)
	}
	return json.Unmarshal(env.Data, out)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
