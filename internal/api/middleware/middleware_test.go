package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/config"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ── mocks ──

type mockRevocation struct {
	revoked map[string]bool
	err     error
}

func (m *mockRevocation) IsRevoked(_ context.Context, jti string) (bool, error) {
	return m.revoked[jti], m.err
}

type mockSlidingWindow struct {
	allowed bool
	err     error
	calls   int
}

func (m *mockSlidingWindow) CheckRateLimit(_ context.Context, _ string, _ int, _ time.Duration) (bool, error) {
	m.calls++
	return m.allowed, m.err
}

func newJWTManager() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{Enabled: true, JWTSecret: "0123456789abcdef0123", Issuer: "agromano"})
}

func protectedRouter(mgr *jwt.Manager, revoked RevocationChecker, perms ...string) *gin.Engine {
	r := gin.New()
	r.Use(JWTAuth(mgr, revoked, zap.NewNop()))
	r.GET("/x", RequirePermission(perms...), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("subject"))
	})
	return r
}

func get(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

// ── JWTAuth / RequirePermission ──

func TestJWTAuth_MissingHeader(t *testing.T) {
	w := get(protectedRouter(newJWTManager(), nil, "asistencia:read:all"), "/x", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("esperado 401, obtenido %d", w.Code)
	}
}

func TestJWTAuth_InvalidToken(t *testing.T) {
	w := get(protectedRouter(newJWTManager(), nil, "asistencia:read:all"), "/x", "no-es-un-token")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("esperado 401, obtenido %d", w.Code)
	}
}

func TestJWTAuth_ValidTokenWithPermission(t *testing.T) {
	mgr := newJWTManager()
	token, err := mgr.GenerateToken("auth0|sup", []string{"asistencia:register"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	w := get(protectedRouter(mgr, nil, "asistencia:register"), "/x", token)
	if w.Code != http.StatusOK {
		t.Fatalf("esperado 200, obtenido %d", w.Code)
	}
	if w.Body.String() != "auth0|sup" {
		t.Errorf("subject no inyectado: %q", w.Body.String())
	}
}

func TestRequirePermission_Forbidden(t *testing.T) {
	mgr := newJWTManager()
	token, _ := mgr.GenerateToken("auth0|lector", []string{"asistencia:read:all"}, time.Hour)

	w := get(protectedRouter(mgr, nil, "asistencia:register"), "/x", token)
	if w.Code != http.StatusForbidden {
		t.Errorf("esperado 403, obtenido %d", w.Code)
	}
}

func TestJWTAuth_RevokedToken(t *testing.T) {
	mgr := newJWTManager()
	token, _ := mgr.GenerateToken("auth0|sup", []string{"asistencia:register"}, time.Hour)
	claims, err := mgr.ParseToken(token)
	if err != nil {
		t.Fatal(err)
	}

	rev := &mockRevocation{revoked: map[string]bool{claims.ID: true}}
	w := get(protectedRouter(mgr, rev, "asistencia:register"), "/x", token)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("token revocado: esperado 401, obtenido %d", w.Code)
	}
}

func TestJWTAuth_RevocationStoreDown(t *testing.T) {
	mgr := newJWTManager()
	token, _ := mgr.GenerateToken("auth0|sup", []string{"asistencia:register"}, time.Hour)

	rev := &mockRevocation{err: errors.New("redis caído")}
	w := get(protectedRouter(mgr, rev, "asistencia:register"), "/x", token)
	if w.Code != http.StatusOK {
		t.Errorf("Redis caído no debe bloquear: esperado 200, obtenido %d", w.Code)
	}
}

// ── RateLimit ──

func rateLimitedRouter(shared SlidingWindow, limit int) *gin.Engine {
	r := gin.New()
	r.Use(RateLimit(shared, limit, time.Minute, zap.NewNop()))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimit_Shared(t *testing.T) {
	shared := &mockSlidingWindow{allowed: false}
	w := get(rateLimitedRouter(shared, 5), "/x", "")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("esperado 429, obtenido %d", w.Code)
	}
	if shared.calls != 1 {
		t.Errorf("esperada 1 consulta a Redis, obtenidas %d", shared.calls)
	}
}

func TestRateLimit_LocalFallback(t *testing.T) {
	tests := []struct {
		name   string
		shared SlidingWindow
	}{
		{"sin redis", nil},
		{"redis con error", &mockSlidingWindow{err: errors.New("timeout")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := rateLimitedRouter(tt.shared, 2)
			for i := 0; i < 2; i++ {
				if w := get(r, "/x", ""); w.Code != http.StatusOK {
					t.Fatalf("petición %d: esperado 200, obtenido %d", i, w.Code)
				}
			}
			if w := get(r, "/x", ""); w.Code != http.StatusTooManyRequests {
				t.Errorf("tercera petición: esperado 429, obtenido %d", w.Code)
			}
		})
	}
}

// ── RequestID ──

func TestLocalLimiter_EvictsIdleKeys(t *testing.T) {
	l := newLocalLimiter(2, time.Minute)
	now := time.Date(2025, 10, 8, 6, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.lastSweep = now

	for i := 0; i < 50; i++ {
		l.allow("rate_limit:10.0.0." + string(rune('a'+i%26)) + ":/entrada")
	}
	if l.size() == 0 {
		t.Fatal("se esperaban limitadores activos")
	}

	now = now.Add(2 * time.Minute)
	l.allow("rate_limit:10.0.0.99:/entrada")
	if got := l.size(); got != 1 {
		t.Errorf("limitadores tras el barrido = %d, esperado 1", got)
	}
}

func TestLocalLimiter_KeepsActiveKeyState(t *testing.T) {
	l := newLocalLimiter(2, time.Minute)
	now := time.Date(2025, 10, 8, 6, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.lastSweep = now

	key := "rate_limit:10.0.0.1:/entrada"
	if !l.allow(key) || !l.allow(key) {
		t.Fatal("las dos primeras peticiones deberían pasar")
	}
	if l.allow(key) {
		t.Error("la tercera petición debería rechazarse")
	}

	// pasada la ventana el bucket se recupera aunque la clave se haya eliminado
	now = now.Add(61 * time.Second)
	if !l.allow(key) {
		t.Error("tras la ventana la petición debería pasar")
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	r.ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") != "abc-123" || w.Body.String() != "abc-123" {
		t.Errorf("se esperaba propagar el id entrante")
	}

	w = get(r, "/x", "")
	if len(w.Header().Get("X-Request-ID")) != 36 {
		t.Errorf("se esperaba un UUID generado, obtenido %q", w.Header().Get("X-Request-ID"))
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("a", 200))
	r.ServeHTTP(w, req)
	if len(w.Header().Get("X-Request-ID")) != 36 {
		t.Error("un id demasiado largo debería reemplazarse")
	}
}

// ── BodyLimit ──

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(16))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/x", strings.NewReader(strings.Repeat("x", 64))))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("esperado 413, obtenido %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/x", strings.NewReader("{}")))
	if w.Code != http.StatusOK {
		t.Errorf("esperado 200, obtenido %d", w.Code)
	}
}

// ── CORS ──

func TestCORS_AllowedOrigin(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:5173/"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("origen permitido no reflejado: %q", got)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("origen no permitido: esperado 403, obtenido %d", w.Code)
	}
}
