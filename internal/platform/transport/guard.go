package transport

import (
	"net/http"
	"sync"

	"go.uber.org/zap"

	"dispatchdesk/internal/platform/id"
	"dispatchdesk/internal/platform/logger"
	"dispatchdesk/internal/platform/metrics"
)

const RequestIDHeader = "X-Request-ID"

// Credentials exposes the bearer token of the current authenticated period.
// ok is false while no session is authenticated.
type Credentials interface {
	Bearer() (token string, epoch uint64, ok bool)
}

// Failure describes one 401 response.
type Failure struct {
	// Epoch is the authenticated period the request was sent under; zero
	// when it was sent anonymously.
	Epoch  uint64
	Method string
	URL    string
}

type Interceptor func(Failure)

// Guard is an http.RoundTripper that authenticates outbound requests and
// notifies interceptors about authorization failures. It never retries and
// never alters the response.
type Guard struct {
	base    http.RoundTripper
	creds   Credentials
	ids     id.Generator
	log     *zap.Logger
	metrics *metrics.Metrics

	mu           sync.Mutex
	interceptors map[uint64]Interceptor
	nextID       uint64
}

func NewGuard(base http.RoundTripper, creds Credentials, ids id.Generator, log *zap.Logger, m *metrics.Metrics) *Guard {
	if base == nil {
		base = http.DefaultTransport
	}
	if ids == nil {
		ids = id.UUID{}
	}
	return &Guard{
		base:         base,
		creds:        creds,
		ids:          ids,
		log:          logger.OrNop(log).Named("guard"),
		metrics:      m,
		interceptors: map[uint64]Interceptor{},
	}
}

// Client returns an http.Client using the guard as its transport.
func (g *Guard) Client() *http.Client {
	return &http.Client{Transport: g}
}

func (g *Guard) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if out.Header.Get(RequestIDHeader) == "" {
		out.Header.Set(RequestIDHeader, g.ids.New())
	}

	var epoch uint64
	if g.creds != nil {
		if token, e, ok := g.creds.Bearer(); ok {
			epoch = e
			if out.Header.Get("Authorization") == "" {
				out.Header.Set("Authorization", "Bearer "+token)
			}
		}
	}

	resp, err := g.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		g.metrics.IncUnauthorized()
		g.log.Warn("authorization failure",
			zap.String("method", out.Method),
			zap.String("url", out.URL.String()),
			zap.String("request_id", out.Header.Get(RequestIDHeader)),
			zap.Uint64("epoch", epoch),
		)
		g.notify(Failure{Epoch: epoch, Method: out.Method, URL: out.URL.String()})
	}
	return resp, nil
}

// Register adds fn and returns its release func. Releasing twice is a no-op
// and only ever removes this registration.
func (g *Guard) Register(fn Interceptor) (release func()) {
	g.mu.Lock()
	key := g.nextID
	g.nextID++
	g.interceptors[key] = fn
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.interceptors, key)
			g.mu.Unlock()
		})
	}
}

// Scope keeps fn registered for the duration of body.
func (g *Guard) Scope(fn Interceptor, body func() error) error {
	release := g.Register(fn)
	defer release()
	return body()
}

// Registered reports the number of live registrations.
func (g *Guard) Registered() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.interceptors)
}

func (g *Guard) notify(f Failure) {
	g.mu.Lock()
	fns := make([]Interceptor, 0, len(g.interceptors))
	for _, fn := range g.interceptors {
		fns = append(fns, fn)
	}
	g.mu.Unlock()
	for _, fn := range fns {
		fn(f)
	}
}
