package http

import (
	"context"
	"net/http"
	"time"

	"mahal/internal/backend"
	"mahal/internal/log"
	"mahal/internal/metrics"
	"mahal/internal/middleware/ratelimit"
	"mahal/internal/middleware/security"
	"mahal/internal/middleware/trace"
	"mahal/internal/services"
)

// Deps are the services the API serves. Ping, Metrics and Logger may be nil.
type Deps struct {
	Members     *services.MemberService
	Users       *services.UserService
	Collections *services.CollectionService
	Reports     *services.DashboardService
	Ping        backend.PingFunc
	Metrics     *metrics.Metrics
	Logger      *log.Logger

	// RateLimitPerMinute bounds write requests per client IP.
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	members     *services.MemberService
	users       *services.UserService
	collections *services.CollectionService
	reports     *services.DashboardService
	ping        backend.PingFunc
	metrics     *metrics.Metrics
	logger      *log.Logger
	limiter     *ratelimit.Limiter
	detector    *security.Detector
	started     time.Time
}

func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		members:     deps.Members,
		users:       deps.Users,
		collections: deps.Collections,
		reports:     deps.Reports,
		ping:        deps.Ping,
		metrics:     deps.Metrics,
		logger:      logger.WithComponent(log.ComponentHTTP),
		limiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		detector:    security.NewDetector(),
		started:     time.Now(),
	}
	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	members := log.ComponentMiddleware(log.ComponentMember)
	handle(mux, "POST /api/members", members, s.handleCreateMember)
	handle(mux, "GET /api/members", members, s.handleListMembers)
	handle(mux, "GET /api/members/{id}", members, s.handleGetMember)
	handle(mux, "PUT /api/members/{id}", members, s.handleUpdateMember)
	handle(mux, "DELETE /api/members/{id}", members, s.handleDeleteMember)

	users := log.ComponentMiddleware(log.ComponentUser)
	handle(mux, "POST /api/users", users, s.handleRegisterUser)
	handle(mux, "GET /api/users/{id}", users, s.handleGetUser)

	collections := log.ComponentMiddleware(log.ComponentCollection)
	handle(mux, "POST /api/collections", collections, s.handleRecordCollection)
	handle(mux, "GET /api/collections", collections, s.handleListCollections)
	handle(mux, "GET /api/collections/{id}", collections, s.handleGetCollection)
	handle(mux, "PUT /api/collections/{id}", collections, s.handleUpdateCollection)
	handle(mux, "DELETE /api/collections/{id}", collections, s.handleDeleteCollection)

	reports := log.ComponentMiddleware(log.ComponentReport)
	handle(mux, "GET /api/reports/dashboard", reports, s.handleDashboard)
	handle(mux, "GET /api/reports/buckets/{bucket}", reports, s.handleBucketReport)
	handle(mux, "GET /api/reports/monthly", reports, s.handleMonthlySeries)
	handle(mux, "GET /api/reports/recent", reports, s.handleRecentActivity)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.ReadOnly, s.onRateLimited)(h)
	h = s.detector.Middleware(s.onSuspicious)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP, s.metrics).Middleware(h)
	return h
}

// handle registers h behind mw, which tags the request logger.
func handle(mux *http.ServeMux, pattern string, mw func(http.Handler) http.Handler, h http.HandlerFunc) {
	mux.Handle(pattern, mw(h))
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.IncRateLimited()
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
}

func (s *Server) onSuspicious(r *http.Request) {
	s.metrics.IncSuspiciousRequest()
	log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
		log.FieldUserAgent, r.UserAgent())
}

// Shutdown stops accepting requests and releases the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}
