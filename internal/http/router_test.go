package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-subscription-service/internal/config"
	"github.com/tbourn/go-subscription-service/internal/http/handlers"
	"github.com/tbourn/go-subscription-service/internal/ratelimit"
	"github.com/tbourn/go-subscription-service/internal/repo"
)

// --- fake connectivity state ---
type stubState bool

func (s stubState) Connected() bool { return bool(s) }

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := repo.Open(dsn, repo.Options{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close(db) })
	return db
}

func testConfig() config.Config {
	return config.Config{
		Mode:           config.ModeProduction,
		ServiceName:    "Subscription API",
		APIBasePath:    "/api",
		BodyLimitBytes: 10 << 10,
		RateLimit:      config.RateLimitConfig{Window: 15 * time.Minute, Max: 100},
		SubscribeRateLimit: config.RateLimitConfig{
			Window: 15 * time.Minute,
			Max:    5,
		},
		CORS:     config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Security: config.SecurityConfig{EnableHSTS: false},
		OTEL:     config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newTestRouter(t *testing.T, cfg config.Config, clock ratelimit.Clock) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, Deps{
		DB:        newTestDB(t),
		DBState:   stubState(true),
		Clock:     clock,
		StartedAt: time.Now(),
	}, cfg)
	return r
}

func subscribe(r http.Handler, email string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	body := fmt.Sprintf(`{"email":%q}`, email)
	req := httptest.NewRequest(http.MethodPost, "/api/subscribe", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) handlers.ErrorResponse {
	t.Helper()
	var out handlers.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return out
}

func TestRegisterRoutes_Root_Health_Metrics(t *testing.T) {
	r := newTestRouter(t, testConfig(), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"message":"Subscription API is running"`) {
		t.Fatalf("GET / = %d %q", w.Code, w.Body.String())
	}

	for _, path := range []string{"/health", "/api/health"} {
		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s = %d", path, w.Code)
		}
		var hr handlers.HealthResponse
		if err := json.Unmarshal(w.Body.Bytes(), &hr); err != nil {
			t.Fatalf("decode health: %v", err)
		}
		if hr.Status != "healthy" || hr.Database != "connected" {
			t.Fatalf("GET %s body = %+v", path, hr)
		}
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}
}

func TestRegisterRoutes_SubscribeThenDuplicate(t *testing.T) {
	r := newTestRouter(t, testConfig(), nil)

	w := subscribe(r, "  Reader@Example.COM ")
	if w.Code != http.StatusCreated {
		t.Fatalf("first subscribe = %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Successfully subscribed!") {
		t.Fatalf("unexpected success body %s", w.Body.String())
	}

	w = subscribe(r, "reader@example.com")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate subscribe = %d %s", w.Code, w.Body.String())
	}
	out := decodeError(t, w)
	if out.Status != "fail" || out.Error.Code != "DUPLICATE_FIELD" {
		t.Fatalf("duplicate body = %+v", out)
	}
	if !strings.Contains(out.Error.Message, "reader@example.com") {
		t.Fatalf("duplicate message should name the value, got %q", out.Error.Message)
	}
}

func TestRegisterRoutes_SubscribeLimiter_SixthRejected(t *testing.T) {
	clock := ratelimit.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	r := newTestRouter(t, testConfig(), clock)

	for i := 1; i <= 5; i++ {
		w := subscribe(r, fmt.Sprintf("user%d@example.com", i))
		if w.Code != http.StatusCreated {
			t.Fatalf("request %d = %d %s", i, w.Code, w.Body.String())
		}
	}

	w := subscribe(r, "user6@example.com")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("6th request = %d, want 429", w.Code)
	}
	out := decodeError(t, w)
	if out.Error.Code != "RATE_LIMIT_EXCEEDED" {
		t.Fatalf("6th body = %+v", out)
	}
	if got := w.Header().Get("Retry-After"); got != "900" {
		t.Fatalf("Retry-After = %q, want 900", got)
	}
	if got := w.Header().Get("RateLimit-Remaining"); got != "0" {
		t.Fatalf("RateLimit-Remaining = %q", got)
	}

	// Other routes only see the general limiter.
	hw := httptest.NewRecorder()
	r.ServeHTTP(hw, httptest.NewRequest(http.MethodGet, "/health", nil))
	if hw.Code != http.StatusOK {
		t.Fatalf("GET /health after subscribe limit = %d", hw.Code)
	}

	clock.Advance(15 * time.Minute)
	if w := subscribe(r, "user6@example.com"); w.Code != http.StatusCreated {
		t.Fatalf("after window reset = %d %s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_Fallbacks(t *testing.T) {
	r := newTestRouter(t, testConfig(), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	out := decodeError(t, w)
	if out.Error.Code != "ROUTE_NOT_FOUND" || !strings.Contains(out.Error.Message, "/nope") {
		t.Fatalf("404 body = %+v", out)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_ModeControlsErrorDetail(t *testing.T) {
	prod := newTestRouter(t, testConfig(), nil)
	w := httptest.NewRecorder()
	prod.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if out := decodeError(t, w); out.Error.Stack != "" || out.Error.Raw != nil {
		t.Fatalf("production leaked debug detail: %+v", out)
	}

	cfg := testConfig()
	cfg.Mode = config.ModeDevelopment
	dev := newTestRouter(t, cfg, nil)
	w = httptest.NewRecorder()
	dev.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	out := decodeError(t, w)
	if out.Error.Stack == "" || out.Error.Raw == nil {
		t.Fatalf("development should include stack and raw: %+v", out)
	}
	if out.Error.Raw.StatusCode != http.StatusNotFound || !out.Error.Raw.IsOperational {
		t.Fatalf("raw = %+v", out.Error.Raw)
	}
}

func TestRegisterRoutes_CORSAllowList(t *testing.T) {
	r := newTestRouter(t, testConfig(), nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected ACAO for foreign origin: %q", got)
	}
}

func TestRegisterRoutes_SecurityHeaders(t *testing.T) {
	r := newTestRouter(t, testConfig(), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	}
	for k, v := range want {
		if got := w.Header().Get(k); got != v {
			t.Fatalf("%s = %q, want %q", k, got, v)
		}
	}
	if w.Header().Get("Content-Security-Policy") == "" {
		t.Fatalf("expected Content-Security-Policy")
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must not be set on plain http")
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func TestRegisterRoutes_OversizedBody(t *testing.T) {
	cfg := testConfig()
	cfg.BodyLimitBytes = 32
	r := newTestRouter(t, cfg, nil)

	w := subscribe(r, strings.Repeat("a", 64)+"@example.com")
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body = %d %s", w.Code, w.Body.String())
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, body := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != body {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

func TestRegisterRoutes_HealthBypassesGeneralLimiter(t *testing.T) {
	clock := ratelimit.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	r := newTestRouter(t, testConfig(), clock)

	for i := 1; i <= 101; i++ {
		for _, path := range []string{"/health", "/api/health"} {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			if w.Code != http.StatusOK {
				t.Fatalf("GET %s #%d = %d", path, i, w.Code)
			}
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || w.Header().Get("RateLimit-Remaining") != "99" {
		t.Fatalf("GET / should be the first counted request: code=%d remaining=%q",
			w.Code, w.Header().Get("RateLimit-Remaining"))
	}
}

func TestRegisterRoutes_GeneralLimitKeepsCORSHeaders(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Max = 2
	clock := ratelimit.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	r := newTestRouter(t, cfg, clock)

	var w *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		w = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		r.ServeHTTP(w, req)
	}
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("3rd GET / = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("429 must carry ACAO for allowed origins, got %q", got)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("429 must carry security headers, got %q", got)
	}
	if out := decodeError(t, w); out.Error.Code != "RATE_LIMIT_EXCEEDED" {
		t.Fatalf("429 body = %+v", out)
	}
}

func Test_monitoringPaths(t *testing.T) {
	got := strings.Join(monitoringPaths("/api"), ",")
	if got != "/health,/metrics,/api/health" {
		t.Fatalf("monitoringPaths(/api) = %q", got)
	}
	if got := strings.Join(monitoringPaths("/"), ","); got != "/health,/metrics" {
		t.Fatalf("monitoringPaths(/) = %q", got)
	}
}
