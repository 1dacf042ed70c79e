package supervisor

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	sup    *Supervisor
	sigs   chan os.Signal
	exits  chan int
	logs   *syncBuffer
	url    string
	result chan int
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newHarness(t *testing.T, handler http.Handler) *harness {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	h := &harness{
		sigs:   make(chan os.Signal, 1),
		exits:  make(chan int, 1),
		logs:   &syncBuffer{},
		url:    "http://" + ln.Addr().String(),
		result: make(chan int, 1),
	}
	h.sup = New(&http.Server{Handler: handler, ReadHeaderTimeout: time.Second},
		WithListener(ln),
		WithSignals(h.sigs),
		WithExit(func(code int) { h.exits <- code }),
		WithGracePeriod(2*time.Second),
		WithLogger(zerolog.New(h.logs)),
	)
	return h
}

func (h *harness) start() { go func() { h.result <- h.sup.Run() }() }

func (h *harness) wait(t *testing.T) int {
	t.Helper()
	select {
	case code := <-h.result:
		return code
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return -1
	}
}

func waitReady(t *testing.T, url string) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestRun_SignalDrainsAndRunsHooksInReverse(t *testing.T) {
	h := newHarness(t, okHandler())

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	h.sup.OnShutdown("database", record("database"))
	h.sup.OnShutdown("tracing", record("tracing"))

	h.start()
	waitReady(t, h.url)

	h.sigs <- syscall.SIGTERM
	assert.Equal(t, 0, h.wait(t))
	assert.Equal(t, []string{"tracing", "database"}, order)

	_, err := http.Get(h.url)
	assert.Error(t, err, "server must stop accepting connections")
	assert.Contains(t, h.logs.String(), "shutdown signal received")
}

func TestRun_InFlightRequestCompletes(t *testing.T) {
	entered := make(chan struct{})
	h := newHarness(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			close(entered)
			time.Sleep(200 * time.Millisecond)
		}
		w.WriteHeader(http.StatusOK)
	}))
	h.start()
	waitReady(t, h.url)

	status := make(chan int, 1)
	go func() {
		resp, err := http.Get(h.url + "/slow")
		if err != nil {
			status <- 0
			return
		}
		_ = resp.Body.Close()
		status <- resp.StatusCode
	}()

	<-entered
	h.sigs <- syscall.SIGINT
	assert.Equal(t, 0, h.wait(t))
	assert.Equal(t, http.StatusOK, <-status)
}

func TestRun_FaultExitsWithOne(t *testing.T) {
	h := newHarness(t, okHandler())
	hookRan := make(chan struct{}, 1)
	h.sup.OnShutdown("database", func(context.Context) error {
		hookRan <- struct{}{}
		return nil
	})

	h.start()
	waitReady(t, h.url)
	h.sup.Fault(errors.New("unhandled rejection"))

	assert.Equal(t, 1, h.wait(t))
	assert.Len(t, hookRan, 1)
	assert.Contains(t, h.logs.String(), "unhandled rejection")
	assert.Empty(t, h.exits, "faults drain; they never call exit directly")
}

func TestGo_ErrorIsFault(t *testing.T) {
	h := newHarness(t, okHandler())
	h.sup.Go("db-monitor", func(context.Context) error { return errors.New("boom") })
	h.start()

	assert.Equal(t, 1, h.wait(t))
	assert.Contains(t, h.logs.String(), "db-monitor: boom")
}

func TestGo_CancelledOnShutdown(t *testing.T) {
	h := newHarness(t, okHandler())
	stopped := make(chan struct{})
	h.sup.Go("ticker", func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	})
	h.start()
	waitReady(t, h.url)

	h.sigs <- syscall.SIGTERM
	assert.Equal(t, 0, h.wait(t))
	select {
	case <-stopped:
	default:
		t.Fatal("supervised goroutine was not cancelled before Run returned")
	}
}

func TestGo_PanicCrashes(t *testing.T) {
	h := newHarness(t, okHandler())
	h.sup.Go("worker", func(context.Context) error { panic("nil map write") })

	select {
	case code := <-h.exits:
		assert.Equal(t, 1, code)
	case <-time.After(2 * time.Second):
		t.Fatal("panic did not reach exit")
	}
	out := h.logs.String()
	assert.Contains(t, out, `"level":"fatal"`)
	assert.Contains(t, out, "worker: nil map write")
	assert.Contains(t, out, `"stack"`)
}

func TestCrash_LogsErrorAndExits(t *testing.T) {
	h := newHarness(t, okHandler())
	hookRan := false
	h.sup.OnShutdown("database", func(context.Context) error { hookRan = true; return nil })

	h.sup.Crash(errors.New("invariant broken"))

	require.Len(t, h.exits, 1)
	assert.Equal(t, 1, <-h.exits)
	assert.False(t, hookRan, "crash must not drain")
	assert.Contains(t, h.logs.String(), "invariant broken")
}

func TestRun_ListenerFailureIsFault(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	sup := New(&http.Server{Handler: okHandler(), ReadHeaderTimeout: time.Second},
		WithListener(ln),
		WithSignals(make(chan os.Signal)),
		WithLogger(zerolog.Nop()),
		WithGracePeriod(time.Second),
	)
	assert.Equal(t, 1, sup.Run())
}

func TestRunHooks_FailureDoesNotStopOthers(t *testing.T) {
	h := newHarness(t, okHandler())
	second := false
	h.sup.OnShutdown("second", func(context.Context) error { second = true; return nil })
	h.sup.OnShutdown("first", func(context.Context) error { return errors.New("close failed") })

	h.start()
	waitReady(t, h.url)
	h.sigs <- syscall.SIGTERM

	assert.Equal(t, 0, h.wait(t))
	assert.True(t, second)
	assert.Contains(t, h.logs.String(), "close failed")
}

func TestFault_NilIgnoredAndNeverBlocks(t *testing.T) {
	sup := New(&http.Server{}, WithLogger(zerolog.Nop()))
	sup.Fault(nil)
	assert.Empty(t, sup.faults)

	for i := 0; i < faultBuffer+3; i++ {
		sup.Fault(errors.New("x"))
	}
	assert.Len(t, sup.faults, faultBuffer)
}

func TestNew_Defaults(t *testing.T) {
	sup := New(&http.Server{}, WithGracePeriod(-time.Second))
	assert.Equal(t, defaultGrace, sup.grace)
	assert.NotNil(t, sup.exit)
}
