// Package httpapi serves the live player views of one MPD connection over
// HTTP for dashboards, probes and Prometheus.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/mpdctl/internal/auth"
	"github.com/danmuck/mpdctl/internal/config"
	"github.com/danmuck/mpdctl/internal/logging"
	"github.com/danmuck/mpdctl/internal/mpd"
	"github.com/danmuck/mpdctl/internal/mpd/live"
	"github.com/danmuck/mpdctl/internal/observability"
	"github.com/danmuck/mpdctl/internal/protocol"
	"github.com/danmuck/mpdctl/internal/protocol/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const Version = "0.1.0"

var ErrUnknownAction = errors.New("unknown player action")

// Server exposes a Client and its live views. Views are refreshed by idle
// notifications, so reads never wait on the daemon once they are loaded.
type Server struct {
	Name string
	Addr string

	client  *mpd.Client
	status  *live.View[mpd.Status]
	queue   *live.View[[]mpd.PlaylistItem]
	stored  *live.View[[]mpd.StoredPlaylist]
	dirs    *live.Directories
	router  *gin.Engine
	tokens  auth.Validator
	log     zerolog.Logger
	started time.Time
	cancel  context.CancelFunc
}

func New(ctx context.Context, name string, client *mpd.Client, cfg config.HTTPConfig) *Server {
	observability.RegisterMetrics()
	log := logging.Component("httpapi")

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log))
	r.Use(observability.RequestMetricsMiddleware(name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET", "POST", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	ctx, cancel := context.WithCancel(ctx)
	s := &Server{
		Name:    name,
		Addr:    cfg.Listen,
		client:  client,
		status:  live.NewStatus(ctx, client),
		queue:   live.NewCurrentPlaylist(ctx, client),
		stored:  live.NewStoredPlaylists(ctx, client),
		dirs:    live.NewDirectories(ctx, client),
		router:  r,
		log:     log,
		started: time.Now(),
		cancel:  cancel,
	}
	if cfg.Token != "" {
		s.tokens = auth.StaticToken{Token: cfg.Token}
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve blocks until ctx is done or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Close stops the live views. It does not close the client.
func (s *Server) Close() {
	s.status.Close()
	s.queue.Close()
	s.stored.Close()
	s.dirs.Close()
	s.cancel()
}

func (s *Server) registerRoutes() {
	r := s.router
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": s.Name,
			"version": Version,
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		state := s.client.Engine().State()
		ready := state.Phase == session.PhaseIdling || state.Phase == session.PhaseBusy
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		body := gin.H{
			"ready":   ready,
			"phase":   state.Phase.String(),
			"pending": state.Pending,
			"mpd":     state.Version.String(),
		}
		if state.Err != nil {
			body["error"] = state.Err.Error()
		}
		c.JSON(code, body)
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/status", func(c *gin.Context) {
		respondView(c, s.status)
	})
	r.GET("/playlist", func(c *gin.Context) {
		respondView(c, s.queue)
	})
	r.GET("/playlists", func(c *gin.Context) {
		respondView(c, s.stored)
	})

	r.GET("/directories", func(c *gin.Context) {
		path := strings.Trim(c.Query("path"), "/")
		entries, err := s.dirs.Watch(c.Request.Context(), path)
		if err != nil {
			respondError(c, err)
			return
		}
		out := make([]entryJSON, 0, len(entries))
		for _, e := range entries {
			out = append(out, entryJSON{Kind: e.Kind().String(), Entry: e})
		}
		c.JSON(http.StatusOK, gin.H{"path": path, "entries": out})
	})
	control := r.Group("/", s.requireToken())
	control.DELETE("/directories", func(c *gin.Context) {
		s.dirs.Unwatch(strings.Trim(c.Query("path"), "/"))
		c.JSON(http.StatusOK, gin.H{"watched": s.dirs.Paths()})
	})

	control.POST("/player/:action", func(c *gin.Context) {
		action := c.Param("action")
		if err := s.playerAction(c.Request.Context(), action); err != nil {
			respondError(c, err)
			return
		}
		s.log.Info().Str("action", action).Msg("player action executed")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	control.POST("/update", func(c *gin.Context) {
		job, err := s.client.Update(c.Request.Context(), strings.Trim(c.Query("path"), "/"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"job": job})
	})
}

// requireToken rejects requests without the configured bearer token. Without
// a token every request passes.
func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.tokens == nil {
			c.Next()
			return
		}
		if err := auth.CheckHeader(s.tokens, c.GetHeader("Authorization")); err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) playerAction(ctx context.Context, action string) error {
	switch action {
	case "play":
		return s.client.Play(ctx)
	case "pause":
		return s.client.Pause(ctx)
	case "stop":
		return s.client.Stop(ctx)
	case "next":
		return s.client.Next(ctx)
	case "previous":
		return s.client.Previous(ctx)
	default:
		return ErrUnknownAction
	}
}

type entryJSON struct {
	Kind  string `json:"kind"`
	Entry any    `json:"entry"`
}

func respondView[T any](c *gin.Context, v *live.View[T]) {
	value, ok := v.Get()
	if !ok {
		if err := v.Refresh(c.Request.Context()); err != nil {
			respondError(c, err)
			return
		}
		value, _ = v.Get()
	}
	c.JSON(http.StatusOK, value)
}

func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	var perr protocol.ProtocolError
	switch {
	case errors.Is(err, ErrUnknownAction):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &perr):
		code := http.StatusBadRequest
		if perr.Code == protocol.AckErrorNoExist {
			code = http.StatusNotFound
		}
		c.JSON(code, gin.H{"error": perr.Message, "ack": perr.Code, "command": perr.Command})
	case errors.Is(err, session.ErrClosed), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
