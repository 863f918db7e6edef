// Package dashboard serves the engine over HTTP: a small REST API, a
// websocket snapshot stream for live views, and Prometheus metrics.
package dashboard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielpatrickdp/reflex-engine/internal/broadcast"
	"github.com/danielpatrickdp/reflex-engine/internal/engine"
	"github.com/danielpatrickdp/reflex-engine/internal/profile"
	"github.com/danielpatrickdp/reflex-engine/internal/stimulus"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// #region server-struct
// Server is the dashboard HTTP server.
type Server struct {
	cfg      Config
	eng      Engine
	logger   *zap.Logger
	router   *gin.Engine
	upgrader websocket.Upgrader
}

// New builds the router. gatherer may be nil, which leaves /metrics unrouted.
func New(eng Engine, gatherer prometheus.Gatherer, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StreamDepth <= 0 {
		cfg.StreamDepth = DefaultConfig().StreamDepth
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	s := &Server{
		cfg:    cfg,
		eng:    eng,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests)
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	api := r.Group("/api")
	api.GET("/snapshot", s.getSnapshot)
	api.GET("/stats", s.getStats)
	api.GET("/presets", s.listPresets)
	api.GET("/presets/:name", s.getPreset)
	api.PUT("/profile", s.putProfile)
	api.PUT("/profile/preset/:name", s.putPreset)
	api.POST("/stimulus", s.postStimulus)
	api.GET("/stream", s.stream)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	s.router = r
	return s
}

// ServeOutputs routes GET /api/outputs to the latest actuator commands
// returned by latest. Call it before Run.
func (s *Server) ServeOutputs(latest func() any) {
	s.router.GET("/api/outputs", func(c *gin.Context) { c.JSON(http.StatusOK, latest()) })
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on cfg.Addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("http request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("took", time.Since(start)))
}

// #endregion server-struct

// #region handlers
func (s *Server) getSnapshot(c *gin.Context) {
	snap, err := s.eng.CurrentSnapshot()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.eng.Stats())
}

func (s *Server) listPresets(c *gin.Context) {
	c.JSON(http.StatusOK, PresetList{Names: profile.PresetNames(), Featured: profile.Featured})
}

func (s *Server) getPreset(c *gin.Context) {
	p, ok := profile.Preset(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorBody{Error: "unknown preset " + c.Param("name")})
		return
	}
	c.JSON(http.StatusOK, profile.SpecOf(p))
}

func (s *Server) putProfile(c *gin.Context) {
	var spec profile.Spec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, ErrorBody{Error: err.Error()})
		return
	}
	p, err := spec.Profile()
	if err != nil {
		s.fail(c, err)
		return
	}
	s.setProfile(c, p)
}

func (s *Server) putPreset(c *gin.Context) {
	p, ok := profile.Preset(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorBody{Error: "unknown preset " + c.Param("name")})
		return
	}
	s.setProfile(c, p)
}

func (s *Server) setProfile(c *gin.Context, p profile.Profile) {
	if err := s.eng.SetProfile(p); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, profile.SpecOf(p))
}

func (s *Server) postStimulus(c *gin.Context) {
	var stim stimulus.Stimulus
	if err := c.ShouldBindJSON(&stim); err != nil {
		c.JSON(http.StatusBadRequest, ErrorBody{Error: err.Error()})
		return
	}
	if stim.Source == "" {
		stim.Source = "dashboard"
	}
	if err := s.eng.SubmitStimulus(stim); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// fail maps engine errors onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	var verr *profile.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, ErrorBody{Error: err.Error(), Fields: verr.Fields})
	case errors.Is(err, engine.ErrUnknownKind):
		c.JSON(http.StatusBadRequest, ErrorBody{Error: err.Error()})
	case errors.Is(err, engine.ErrEngineNotStarted), errors.Is(err, engine.ErrEngineStopped):
		c.JSON(http.StatusServiceUnavailable, ErrorBody{Error: err.Error()})
	default:
		s.logger.Error("dashboard request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorBody{Error: err.Error()})
	}
}

// #endregion handlers

// #region stream
// stream upgrades to a websocket and pushes one JSON snapshot per tick. A
// slow viewer loses intermediate snapshots, never the latest one.
func (s *Server) stream(c *gin.Context) {
	name := "ws-" + uuid.NewString()
	sub, err := s.eng.Watch(name, s.cfg.StreamDepth)
	if err != nil {
		s.fail(c, err)
		return
	}
	defer func() { _ = s.eng.Unsubscribe(name) }()

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()
	s.logger.Debug("viewer connected", zap.String("subscriber", name))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		snap, err := sub.Next(ctx)
		if errors.Is(err, broadcast.ErrClosed) {
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "engine stopped"),
				time.Now().Add(s.cfg.WriteTimeout))
			return
		}
		if err != nil {
			return
		}
		_ = ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := ws.WriteJSON(snap); err != nil {
			s.logger.Debug("viewer gone", zap.String("subscriber", name), zap.Error(err))
			return
		}
	}
}

// #endregion stream
