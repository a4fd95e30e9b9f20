package api

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/energizer-project/jagprox/dashboard"
	"github.com/energizer-project/jagprox/internal/config"
	"github.com/energizer-project/jagprox/internal/db"
	"github.com/energizer-project/jagprox/internal/events"
	intnet "github.com/energizer-project/jagprox/internal/network"
	"github.com/energizer-project/jagprox/internal/relay"
	"github.com/energizer-project/jagprox/internal/util"
)

// Sessions is the view of the relay the API needs.
type Sessions interface {
	Active() (relay.Snapshot, bool)
	Kick(reason string) bool
}

// Results reads recorded game outcomes.
type Results interface {
	Recent(ctx context.Context, limit int) ([]db.GameResult, error)
	Summary(ctx context.Context, since time.Time) ([]db.GameTally, error)
}

// Server is the local admin API and dashboard.
type Server struct {
	cfg      *config.Config
	bus      *events.Bus
	sessions Sessions
	results  Results
	logger   zerolog.Logger

	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates the admin API server. results may be nil when no
// database is open.
func NewServer(cfg *config.Config, bus *events.Bus, sessions Sessions, results Results) *Server {
	if cfg.GetLogging().Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		bus:      bus,
		sessions: sessions,
		results:  results,
		logger:   util.ComponentLogger("api"),
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.GetAdmin().Listen
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	lc := intnet.ReuseAddrListenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("admin API listen: %w", err)
	}

	s.logger.Info().Str("addr", addr).Msg("admin API listening")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("admin API error: %w", err)
	}
	return nil
}

func (s *Server) buildRouter() *gin.Engine {
	admin := s.cfg.GetAdmin()
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger(s.logger))
	router.Use(SecurityHeaders())

	allowedOrigins := admin.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:  allowedOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	router.Use(NewRateLimiter(admin.RateLimitRPS).Middleware())

	public := router.Group("/api/public")
	{
		public.GET("/ping", s.handlePing)
	}

	api := router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/games", s.handleGames)
		api.GET("/config", s.handleGetConfig)
		api.POST("/config", s.handleSetConfig)
		api.POST("/session/kick", s.handleKick)
		api.GET("/events", s.handleEvents)
	}

	s.mountDashboard(router)
	return router
}

// mountDashboard serves the embedded dashboard at / with an index.html
// fallback for client-side routes.
func (s *Server) mountDashboard(router *gin.Engine) {
	dist, err := fs.Sub(dashboard.DistFS, "dist")
	if err == nil {
		if _, statErr := fs.Stat(dist, "index.html"); statErr != nil {
			err = statErr
		}
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("dashboard assets missing, serving API only")
		router.NoRoute(func(c *gin.Context) {
			c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
		})
		return
	}

	files := http.FS(dist)
	router.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
			return
		}
		if name := strings.TrimPrefix(path, "/"); name != "" {
			if _, err := fs.Stat(dist, name); err == nil {
				c.FileFromFS(name, files)
				return
			}
		}
		c.FileFromFS("/", files)
	})
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
