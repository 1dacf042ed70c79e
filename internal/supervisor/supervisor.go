// Package supervisor owns the process lifecycle of the HTTP service: it
// starts the server, waits for a termination signal or a reported fault,
// drains in-flight requests within a grace period, and runs shutdown hooks.
//
// Faults come in two kinds:
//
//   - Crash: a panic escaping a supervised goroutine, or anything passed to
//     Crash directly. Logged with a stack at fatal level, then the process
//     exits with status 1 without draining.
//   - Fault: a supervised goroutine returning an error, a listener failure,
//     or anything passed to Fault. Triggers the same graceful drain as a
//     signal, but Run reports exit status 1.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	defaultGrace = 10 * time.Second
	faultBuffer  = 8
)

// Hook is a named cleanup step run after the server has drained.
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Supervisor runs one http.Server plus any number of background goroutines.
type Supervisor struct {
	srv     *http.Server
	ln      net.Listener
	grace   time.Duration
	exit    func(int)
	signals <-chan os.Signal
	log     zerolog.Logger

	mu    sync.Mutex
	hooks []Hook

	faults chan error
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithGracePeriod bounds the drain and the shutdown hooks. Non-positive
// values keep the default of 10s.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithExit replaces os.Exit for Crash.
func WithExit(fn func(int)) Option { return func(s *Supervisor) { s.exit = fn } }

// WithSignals replaces the SIGINT/SIGTERM subscription.
func WithSignals(ch <-chan os.Signal) Option { return func(s *Supervisor) { s.signals = ch } }

// WithLogger replaces the global zerolog logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Supervisor) { s.log = l } }

// WithListener serves on ln instead of srv.Addr.
func WithListener(ln net.Listener) Option { return func(s *Supervisor) { s.ln = ln } }

// New builds a Supervisor for srv.
func New(srv *http.Server, opts ...Option) *Supervisor {
	s := &Supervisor{
		srv:    srv,
		grace:  defaultGrace,
		exit:   os.Exit,
		log:    log.Logger,
		faults: make(chan error, faultBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	base, cancel := context.WithCancel(context.Background())
	s.group, s.ctx = errgroup.WithContext(base)
	s.cancel = cancel
	return s
}

// OnShutdown registers a cleanup hook. Hooks run in reverse registration
// order once the server has stopped accepting requests.
func (s *Supervisor) OnShutdown(name string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, Hook{Name: name, Fn: fn})
}

// Go runs fn in a supervised goroutine. The context passed to fn is
// cancelled when the supervisor shuts down. A returned error is reported as
// a Fault; a panic is reported as a Crash.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.Crash(fmt.Sprintf("%s: %v", name, r))
			}
		}()
		err = fn(s.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%s: %w", name, err)
			s.Fault(err)
			return err
		}
		return nil
	})
}

// Fault reports an error that should stop the service gracefully. It never
// blocks; faults beyond the buffer are logged and dropped since one is enough
// to trigger shutdown.
func (s *Supervisor) Fault(err error) {
	if err == nil {
		return
	}
	select {
	case s.faults <- err:
	default:
		s.log.Error().Err(err).Msg("fault dropped; shutdown already pending")
	}
}

// Crash logs v with the current stack at fatal level and exits with status 1
// immediately. No drain, no hooks.
func (s *Supervisor) Crash(v any) {
	ev := s.log.WithLevel(zerolog.FatalLevel).Str("stack", string(debug.Stack()))
	if err, ok := v.(error); ok {
		ev = ev.Err(err)
	} else {
		ev = ev.Interface("panic", v)
	}
	ev.Msg("uncaught fault, exiting")
	s.exit(1)
}

// Run serves until a termination signal or a fault arrives, drains, runs the
// shutdown hooks and returns the process exit status: 0 for a signal, 1 for
// a fault.
func (s *Supervisor) Run() int {
	sigs := s.signals
	if sigs == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigs = ch
	}

	go s.serve()

	code := 0
	select {
	case sig := <-sigs:
		s.log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-s.faults:
		s.log.Error().Err(err).Msg("fault reported, shutting down")
		code = 1
	}

	s.shutdown()
	return code
}

func (s *Supervisor) serve() {
	var err error
	if s.ln != nil {
		s.log.Info().Str("addr", s.ln.Addr().String()).Msg("http server listening")
		err = s.srv.Serve(s.ln)
	} else {
		s.log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
		err = s.srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.Fault(fmt.Errorf("http server: %w", err))
	}
}

func (s *Supervisor) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Error().Err(err).Msg("http server drain incomplete")
	}

	s.cancel()
	done := make(chan struct{})
	go func() {
		_ = s.group.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn().Msg("background goroutines still running after grace period")
	}

	s.runHooks()
	s.log.Info().Msg("shutdown complete")
}

func (s *Supervisor) runHooks() {
	s.mu.Lock()
	hooks := append([]Hook(nil), s.hooks...)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if err := h.Fn(ctx); err != nil {
			s.log.Error().Err(err).Str("hook", h.Name).Msg("shutdown hook failed")
			continue
		}
		s.log.Debug().Str("hook", h.Name).Msg("shutdown hook done")
	}
}
