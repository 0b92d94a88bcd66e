package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/me/folio/internal/session"
	"github.com/me/folio/pkg/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrResolverUnavailable means the session could not be checked at all,
// for example because the backend is not configured. Ordinary lookup
// failures are not reported this way; they resolve to no identity.
var ErrResolverUnavailable = errors.New("session resolver unavailable")

// UserGetter is the backend session-store operation the resolver delegates to.
// *session.Manager implements it.
type UserGetter interface {
	GetUser(ctx context.Context, cookies []*http.Cookie) (*model.Identity, []*http.Cookie, error)
}

// Resolution is the resolver's verdict for one request.
type Resolution struct {
	// Identity is nil when the request is unauthenticated.
	Identity *model.Identity
	// Mutations are cookies to write on the response, whatever the action.
	Mutations []*http.Cookie
}

// Resolver turns a request's cookies into an identity.
type Resolver struct {
	users   UserGetter
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// NewResolver creates a resolver over users. metrics may be nil.
func NewResolver(users UserGetter, logger *slog.Logger, metrics *Metrics) *Resolver {
	return &Resolver{
		users:   users,
		logger:  logger.With("component", "resolver"),
		metrics: metrics,
		tracer:  otel.Tracer("github.com/me/folio/internal/auth"),
	}
}

// Resolve checks the session carried by cookies. It never writes to a
// response. Backend call failures are logged and downgraded to "no
// identity"; only ErrResolverUnavailable is returned as an error.
func (r *Resolver) Resolve(ctx context.Context, cookies []*http.Cookie) (res Resolution, err error) {
	ctx, span := r.tracer.Start(ctx, "session.resolve")
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			r.metrics.recordFailure("unavailable")
			span.SetStatus(codes.Error, "panic")
			res = Resolution{}
			err = fmt.Errorf("%w: panic: %v", ErrResolverUnavailable, p)
		}
	}()

	if r.users == nil {
		r.metrics.recordFailure("unavailable")
		return Resolution{}, fmt.Errorf("%w: no session store", ErrResolverUnavailable)
	}

	start := time.Now()
	id, mutations, err := r.users.GetUser(ctx, cookies)
	r.metrics.observeResolve(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, session.ErrMisconfigured) {
			r.metrics.recordFailure("unavailable")
			return Resolution{Mutations: mutations}, fmt.Errorf("%w: %v", ErrResolverUnavailable, err)
		}
		r.metrics.recordFailure("call")
		r.logger.Warn("session lookup failed; treating as signed out", "error", err)
		return Resolution{Mutations: mutations}, nil
	}

	span.SetAttributes(
		attribute.Bool("folio.authenticated", id != nil),
		attribute.Int("folio.cookie_mutations", len(mutations)),
	)
	return Resolution{Identity: id, Mutations: mutations}, nil
}
