package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"billing-backend/internal/billruns"
	"billing-backend/internal/regions"
	"billing-backend/internal/services/health"
	"billing-backend/internal/setup/web"
	"billing-backend/internal/shared/auth"
	"billing-backend/internal/shared/config"
	"billing-backend/internal/shared/metrics"
	"billing-backend/internal/shared/server/middleware"
	"billing-backend/internal/shared/server/respond"
)

const (
	healthPath  = "/api/v1/health"
	metricsPath = "/metrics"
	checkPath   = "/api/v1/bill-runs/setup/:id/check"
	submitPath  = "/api/v1/bill-runs/setup/:id/submit"
)

// RouterDeps carries the handlers mounted on the engine. Nil handlers are
// skipped.
type RouterDeps struct {
	Config         config.Config
	Secret         []byte
	Health         *health.Service
	RegionHandler  *regions.Handler
	BillRunHandler *billruns.Handler
	SetupHandler   *web.Handler
	Limiter        *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(middleware.AuthConfig{
			Env:         deps.Config.Env,
			Secret:      deps.Secret,
			Scope:       auth.ScopeBilling,
			PublicPaths: []string{healthPath, metricsPath},
		}),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: "DEFAULT",
			GroupFor:     rateLimitGroup,
			Limiter:      deps.Limiter,
			Rules: map[string]middleware.RateLimitRule{
				"DEFAULT": {Rate: 2, Burst: 20},
				"CHECK":   {Rate: 5, Burst: 30},
				"SUBMIT":  {Rate: 0.2, Burst: 5},
			},
		}),
	)

	r.GET(metricsPath, metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.JSON(c, http.StatusOK, gin.H{"ok": true})
			return
		}
		status := deps.Health.Status(c.Request.Context())
		code := http.StatusOK
		if !status.OK {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, status)
	})
	registerMeRoutes(api)
	if deps.RegionHandler != nil {
		deps.RegionHandler.RegisterRoutes(api)
	}
	if deps.BillRunHandler != nil {
		deps.BillRunHandler.RegisterRoutes(api)
	}
	if deps.SetupHandler != nil {
		deps.SetupHandler.RegisterRoutes(api)
	}

	return r
}

func rateLimitGroup(c *gin.Context) string {
	switch {
	case c.Request.Method == http.MethodGet && c.FullPath() == checkPath:
		return "CHECK"
	case c.Request.Method == http.MethodPost && c.FullPath() == submitPath:
		return "SUBMIT"
	default:
		return "DEFAULT"
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}

// ShutdownTimeout bounds graceful shutdown of the HTTP server.
const ShutdownTimeout = 10 * time.Second
