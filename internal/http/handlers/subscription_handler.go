// Subscription HTTP handlers.
//
// This file exposes the public endpoints:
//   - GET  /                    (service banner)
//   - GET  /health, {base}/health (liveness with database state)
//   - POST {base}/subscribe     (create a subscription)
//
// Handlers are transport-thin: they validate input, call the subscription
// service, and hand every failure to Abort so the error envelope is uniform.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-subscription-service/internal/apperr"
	"github.com/tbourn/go-subscription-service/internal/config"
	"github.com/tbourn/go-subscription-service/internal/domain"
	"github.com/tbourn/go-subscription-service/internal/http/middleware"
	"github.com/tbourn/go-subscription-service/internal/observability"
	"github.com/tbourn/go-subscription-service/internal/validate"
)

//
// Service contracts (context-aware)
//

// SubscriptionService stores new subscriptions.
//
// Implementations must honor the provided context and report an existing
// address as *apperr.DuplicateKeyError.
type SubscriptionService interface {
	Subscribe(ctx context.Context, email string) (*domain.Subscription, error)
}

// DBState reports whether the database answered its last probe.
type DBState interface {
	Connected() bool
}

//
// Handler wiring
//

// Options carries presentation settings for Handlers.
type Options struct {
	ServiceName string
	Mode        config.Mode
	StartedAt   time.Time
	// Now is used for health timestamps; nil means time.Now.
	Now func() time.Time
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	subs SubscriptionService
	db   DBState
	opts Options
}

// New constructs Handlers bound to the given collaborators.
func New(subs SubscriptionService, db DBState, opts Options) *Handlers {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StartedAt.IsZero() {
		opts.StartedAt = opts.Now()
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "Subscription API"
	}
	return &Handlers{subs: subs, db: db, opts: opts}
}

//
// DTOs
//

// SubscribeRequest is the JSON payload for POST /subscribe.
type SubscribeRequest struct {
	Email string `json:"email" example:"reader@example.com"`
}

// HealthResponse reports liveness and database connectivity.
type HealthResponse struct {
	Status    string    `json:"status" example:"healthy"`
	Database  string    `json:"database" example:"connected"`
	Uptime    float64   `json:"uptime" example:"12.5"`
	Timestamp time.Time `json:"timestamp"`
}

// subscribeRules normalizes the address before checking it, so the stored and
// reported values are the trimmed lower-case form.
var subscribeRules = []*validate.Chain{
	validate.Field("email").
		Trim().
		Lower().
		Required("Email is required").
		String("Email must be a string").
		Email("Please provide a valid email address").
		MaxLen(320, "Email is too long"),
}

//
// Endpoints
//

// Root godoc
// @ID          root
// @Summary     Service banner
// @Tags        Meta
// @Produce     json
// @Success     200  {object}  handlers.SuccessResponse
// @Router      / [get]
func (h *Handlers) Root(c *gin.Context) {
	ok(c, http.StatusOK, SuccessResponse{Status: "success", Message: h.opts.ServiceName + " is running"})
}

// Health godoc
// @ID          health
// @Summary     Liveness and database state
// @Tags        Meta
// @Produce     json
// @Success     200  {object}  handlers.HealthResponse
// @Router      /health [get]
func (h *Handlers) Health(c *gin.Context) {
	state := "disconnected"
	if h.db != nil && h.db.Connected() {
		state = "connected"
	}
	now := h.opts.Now()
	ok(c, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Database:  state,
		Uptime:    now.Sub(h.opts.StartedAt).Seconds(),
		Timestamp: now.UTC(),
	})
}

// Subscribe godoc
// @ID          subscribe
// @Summary     Subscribe an email address
// @Description Stores a normalized email address. Each address can subscribe once.
// @Tags        Subscriptions
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SubscribeRequest  true  "Subscription payload"
//
// @Success     201  {object}  handlers.SuccessResponse
// @Header      201  {string}  RateLimit-Remaining  "Requests left in the current window"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed or duplicate email"
// @Failure     413  {object}  handlers.ErrorResponse  "Body too large"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limit exceeded"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /subscribe [post]
func (h *Handlers) Subscribe(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		observability.SubscriptionsTotal.WithLabelValues(observability.ResultInvalid).Inc()
		Abort(c, err)
		return
	}

	vals, verr := validate.Run(body, subscribeRules...)
	if verr != nil {
		observability.SubscriptionsTotal.WithLabelValues(observability.ResultInvalid).Inc()
		Abort(c, verr)
		return
	}

	sub, err := h.subs.Subscribe(c.Request.Context(), vals.String("email"))
	if err != nil {
		observability.SubscriptionsTotal.WithLabelValues(resultFor(err)).Inc()
		Abort(c, err)
		return
	}

	observability.SubscriptionsTotal.WithLabelValues(observability.ResultCreated).Inc()
	middleware.LoggerFrom(c).Info().Str("subscription_id", sub.ID).Msg("subscription created")
	ok(c, http.StatusCreated, SuccessResponse{Status: "success", Message: "Successfully subscribed!"})
}

// NotFound renders ROUTE_NOT_FOUND for unmatched paths.
func (h *Handlers) NotFound(c *gin.Context) {
	Abort(c, apperr.RouteNotFound(c.Request.Method, c.Request.URL.Path))
}

// MethodNotAllowed renders 405 for known paths hit with the wrong verb.
func (h *Handlers) MethodNotAllowed(c *gin.Context) {
	Abort(c, apperr.MethodNotAllowed(c.Request.Method, c.Request.URL.Path))
}

func resultFor(err error) string {
	var dup *apperr.DuplicateKeyError
	var schema *apperr.SchemaError
	switch {
	case errors.As(err, &dup):
		return observability.ResultDuplicate
	case errors.As(err, &schema):
		return observability.ResultInvalid
	default:
		return observability.ResultError
	}
}
