package router

import (
	"net/http"
	"time"

	"designsense-go/internal/config"
	"designsense-go/internal/handlers"
	"designsense-go/internal/metrics"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// Deps are the collaborators the routes are built from.
type Deps struct {
	DesignTest handlers.DesignTestService
	DB         handlers.Pinger
	Metrics    *metrics.Metrics
}

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func errorHandler(c *gin.Context, info ratelimit.Info) {
	c.Header("Retry-After", info.ResetTime.UTC().Format(http.TimeFormat))
	c.JSON(http.StatusTooManyRequests, gin.H{"detail": "Too many requests. Try again later."})
}

func Setup(log *zap.Logger, conf config.ServerConfig, deps Deps) *gin.Engine {
	handlers.ConfigureBinding()

	// Set up a new Gin router, add recovery middleware and request logging.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}
	router.Use(corsMiddleware(conf.AllowedOrigins))

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
	})
	router.Use(func(c *gin.Context) {
		err := secureMiddleware.Process(c.Writer, c.Request)
		if err != nil {
			c.Abort()
			return
		}
	})

	if conf.MaxBodyBytes > 0 {
		router.Use(BodyLimit(conf.MaxBodyBytes))
	}

	// Handlers and routes
	designTestHandler := handlers.NewDesignTestHandler(deps.DesignTest, log)
	healthHandler := handlers.NewHealthHandler(deps.DB, log)

	limit := conf.SubmitRateLimit
	if limit == 0 {
		limit = 10
	}
	window := conf.SubmitRateWindow
	if window <= 0 {
		window = time.Minute
	}
	rateLimitStore := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  window,
		Limit: limit,
	})
	limiter := ratelimit.RateLimiter(rateLimitStore, &ratelimit.Options{
		ErrorHandler: errorHandler,
		KeyFunc:      keyFunc,
	})

	router.GET("/health", healthHandler.Health)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := router.Group("/api/design-test")
	{
		api.GET("/questions", designTestHandler.ListQuestions)
		api.GET("/supplemental", designTestHandler.ListSupplemental)
		api.POST("/sessions", designTestHandler.CreateSession)
		api.POST("/submit", limiter, designTestHandler.Submit)
	}

	return router
}

// corsMiddleware allows the configured origins, or reflects any origin when
// none are configured. Credentials are allowed either way.
func corsMiddleware(origins []string) gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		conf.AllowOriginFunc = func(string) bool { return true }
	} else {
		conf.AllowOrigins = origins
	}
	return cors.New(conf)
}
