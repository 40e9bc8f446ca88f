// Package api exposes a thin HTTP/WebSocket surface over the core: trigger a
// replay, read sweep progress snapshots, read live engine health, and stream
// live SignalResult/TradeRecord events to connected dashboards. It is
// deliberately small — the core's own scope (§1) excludes a full operator
// console; this is the minimum surface SPEC_FULL.md's domain stack commits
// the gin/gorilla/jwt dependencies to.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"vegasstrategy/config"
	"vegasstrategy/internal/auth"
	"vegasstrategy/internal/candle"
	"vegasstrategy/internal/execution"
	"vegasstrategy/internal/period"
	"vegasstrategy/internal/risk"
	"vegasstrategy/internal/strategy"
)

// SnapshotReader is the read side of sweep.SnapshotStore the progress
// endpoint needs; kept separate from the sweep package's write-capable
// interface so the API can never kick off a sweep, only observe one.
type SnapshotReader interface {
	LoadProgress(ctx context.Context, instrument string, p period.Period) (execution.ProgressSnapshot, bool, error)
}

// Server is the engine's status/admin HTTP API.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	logger     zerolog.Logger
	cfg        config.ServerConfig
	authCfg    config.AuthConfig
	jwtManager *auth.JWTManager
	hub        *Hub
	snapshots  SnapshotReader
}

// NewServer builds the Server's route table. jwtManager and snapshots may be
// nil; when authCfg.Enabled is false, admin routes are unguarded (intended
// for local/dev only, mirroring the teacher's AuthConfig.Enabled gate).
func NewServer(cfg config.ServerConfig, authCfg config.AuthConfig, logger zerolog.Logger, jwtManager *auth.JWTManager, snapshots SnapshotReader) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.AllowedOrigins},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	s := &Server{
		router:     router,
		logger:     logger,
		cfg:        cfg,
		authCfg:    authCfg,
		jwtManager: jwtManager,
		hub:        NewHub(logger),
		snapshots:  snapshots,
	}
	go s.hub.Run()
	s.routes()
	return s
}

// Hub exposes the websocket fan-out so the execution loop (or a scheduler
// job wrapper) can push live events without importing the api package's
// private types.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) routes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws/events", s.handleWebSocket)

	admin := s.router.Group("/api/v1")
	if s.authCfg.Enabled && s.jwtManager != nil {
		admin.Use(auth.Middleware(s.jwtManager), auth.RequireAdmin())
	}
	admin.POST("/replay", s.handleReplay)
	admin.GET("/sweep/progress", s.handleSweepProgress)
}

// Start runs the HTTP server until the process is signaled to stop;
// ListenAndServe's own http.ErrServerClosed is not an error here.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeout) * time.Second,
	}
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("status API listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status API server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests up to the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.ShutdownTimeout)*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

// replayRequest is the wire shape for POST /api/v1/replay.
type replayRequest struct {
	Instrument string          `json:"instrument" binding:"required"`
	Period     period.Period   `json:"period" binding:"required"`
	Strategy   string          `json:"strategy"` // "vegas" (default) | "nwe"
	Candles    []replayCandle  `json:"candles" binding:"required"`
}

type replayCandle struct {
	TsMillis int64   `json:"ts_millis"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
	Confirm  bool    `json:"confirm"`
}

// handleReplay runs a synchronous backtest replay over the candles in the
// request body and returns the resulting BacktestResult. It is the HTTP
// trigger SPEC_FULL.md's thin API commits to; long series should be run out
// of process and their summary read back via Persistence instead.
func (s *Server) handleReplay(c *gin.Context) {
	var req replayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	strat := strategy.DefaultConfig()
	if req.Strategy == "nwe" {
		strat = strategy.DefaultNweConfig()
	}
	strat.Period = req.Period
	riskCfg := risk.DefaultConfig()

	series := make([]candle.Candle, len(req.Candles))
	for i, rc := range req.Candles {
		series[i] = candle.Candle{
			TsMillis: rc.TsMillis, Open: rc.Open, High: rc.High,
			Low: rc.Low, Close: rc.Close, Volume: rc.Volume, Confirm: rc.Confirm,
		}
	}

	result, err := execution.Replay(strat, riskCfg, series)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSweepProgress(c *gin.Context) {
	instrument := c.Query("instrument")
	p := period.Period(c.Query("period"))
	if instrument == "" || p == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "instrument and period are required"})
		return
	}
	if s.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sweep progress store not configured"})
		return
	}

	snap, ok, err := s.snapshots.LoadProgress(c.Request.Context(), instrument, p)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no sweep progress for this stream"})
		return
	}
	c.JSON(http.StatusOK, snap)
}
