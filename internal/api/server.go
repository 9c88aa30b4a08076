// Package api serves read-only reports over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/gregapostle/memebot/internal/paper"
	"github.com/gregapostle/memebot/internal/pnl"
	"github.com/gregapostle/memebot/internal/positions"
)

// PositionReader exposes both position tables.
type PositionReader interface {
	OpenPositions(ctx context.Context) ([]positions.Open, error)
	ClosedPositions(ctx context.Context) ([]positions.Closed, error)
}

// TradeReader lists paper trades.
type TradeReader interface {
	ListAll() []paper.Trade
}

// Server wraps the gin router and its http.Server.
type Server struct {
	router     *gin.Engine
	store      PositionReader
	trades     TradeReader
	log        zerolog.Logger
	now        func() time.Time
	httpServer *http.Server
}

// NewServer registers every route. trades may be nil when no ledger runs in-process.
func NewServer(addr string, store PositionReader, trades TradeReader, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	s := &Server{router: router, store: store, trades: trades, log: log, now: time.Now}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	router.GET("/healthz", s.handleHealth)
	router.GET("/positions/open", s.handleOpenPositions)
	router.GET("/positions/closed", s.handleClosedPositions)
	router.GET("/pnl", s.handlePnL)
	router.GET("/pnl/tokens", s.handlePnLByToken)
	router.GET("/trades", s.handleTrades)
	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start blocks serving until Shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("report api listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("api request")
	}
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"error": true, "message": message})
}

func successResponse(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleOpenPositions(c *gin.Context) {
	open, err := s.store.OpenPositions(c.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("read open positions")
		errorResponse(c, http.StatusInternalServerError, "failed to read open positions")
		return
	}
	successResponse(c, open)
}

func (s *Server) handleClosedPositions(c *gin.Context) {
	closed, err := s.store.ClosedPositions(c.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("read closed positions")
		errorResponse(c, http.StatusInternalServerError, "failed to read closed positions")
		return
	}
	successResponse(c, closed)
}

// handlePnL accepts since=today|all|<unix seconds>; default all.
func (s *Server) handlePnL(c *gin.Context) {
	since, err := parseSince(c.DefaultQuery("since", "all"), s.now())
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	closed, err := s.store.ClosedPositions(c.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("read closed positions")
		errorResponse(c, http.StatusInternalServerError, "failed to read closed positions")
		return
	}
	successResponse(c, pnl.Report(closed, since))
}

func (s *Server) handlePnLByToken(c *gin.Context) {
	closed, err := s.store.ClosedPositions(c.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("read closed positions")
		errorResponse(c, http.StatusInternalServerError, "failed to read closed positions")
		return
	}
	successResponse(c, pnl.ByToken(closed))
}

func (s *Server) handleTrades(c *gin.Context) {
	if s.trades == nil {
		successResponse(c, []paper.Trade{})
		return
	}
	successResponse(c, s.trades.ListAll())
}

func parseSince(raw string, now time.Time) (*time.Time, error) {
	switch raw {
	case "", "all":
		return nil, nil
	case "today":
		start := pnl.StartOfDay(now)
		return &start, nil
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || secs < 0 {
		return nil, errors.New("since must be today, all or unix seconds")
	}
	t := time.Unix(secs, 0).UTC()
	return &t, nil
}
