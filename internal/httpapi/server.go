// Package httpapi exposes the admin REST surface: CRUD for groups,
// users, schedules and broadcasts, daily statistics, settings, and the
// xlsx export.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/clock"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/config"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/internal/store"
	"github.com/SanjarbekFayzullayev/rnd-smart-bot/pkg/logx"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	store store.Store
	clock *clock.Clock
	log   logx.Logger
	http  *http.Server
}

func New(cfg config.HTTPConfig, st store.Store, clk *clock.Clock, log logx.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{store: st, clock: clk, log: log}
	s.http = &http.Server{Addr: cfg.Addr, Handler: s.router()}
	return s
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), cors())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/", s.handleRoot)
	r.GET("/api", s.handleRoot)

	api := r.Group("/api")
	{
		api.GET("/groups", s.listGroups)
		api.POST("/groups", s.createGroup)
		api.GET("/groups/:id", s.getGroup)
		api.PUT("/groups/:id", s.updateGroup)
		api.DELETE("/groups/:id", s.deleteGroup)

		api.GET("/users", s.listUsers)
		api.POST("/users", s.createUser)
		api.GET("/users/:id", s.getUser)
		api.PUT("/users/:id", s.updateUser)
		api.DELETE("/users/:id", s.deleteUser)

		api.GET("/schedules", s.listSchedules)
		api.POST("/schedules", s.createSchedule)
		api.GET("/schedules/:id", s.getSchedule)
		api.PUT("/schedules/:id", s.updateSchedule)
		api.DELETE("/schedules/:id", s.deleteSchedule)

		api.GET("/broadcasts", s.listBroadcasts)
		api.POST("/broadcasts", s.createBroadcast)
		api.GET("/broadcasts/:id", s.getBroadcast)
		api.PUT("/broadcasts/:id", s.updateBroadcast)
		api.DELETE("/broadcasts/:id", s.deleteBroadcast)

		api.GET("/stats/today", s.statsToday)
		api.GET("/stats/:date", s.statsByDate)

		api.GET("/settings", s.getSettings)
		api.PUT("/settings", s.putSettings)

		api.GET("/export/excel", s.exportExcel)
	}
	return r
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Serve blocks until the listener fails or ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- s.http.ListenAndServe() }()
	s.log.Info("http api listening", logx.String("addr", s.http.Addr))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.http.Shutdown(sctx)
	}
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "RND SMART BOT API is running!",
		"version": "1.0.0",
		"endpoints": []string{
			"/api/groups", "/api/users", "/api/schedules", "/api/broadcasts",
			"/api/stats/today", "/api/settings", "/api/export/excel",
		},
	})
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// fail maps store errors to the API error body.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		s.log.Error("api request failed",
			logx.String("path", c.FullPath()), logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
