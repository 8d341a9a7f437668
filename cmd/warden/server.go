package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
	"golang.org/x/time/rate"

	"github.com/nomi-labs/guardian/moderation"
	"github.com/nomi-labs/guardian/moderation/engine"
	"github.com/nomi-labs/guardian/moderation/sanction"
)

type Server struct {
	logger  *slog.Logger
	engine  *engine.Engine
	echo    *echo.Echo
	limiter *rate.Limiter
}

type Config struct {
	Logger        *slog.Logger
	EvalRateLimit int
}

func NewServer(eng *engine.Engine, config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())

	s := &Server{
		logger:  logger,
		engine:  eng,
		echo:    e,
		limiter: rate.NewLimiter(rate.Limit(config.EvalRateLimit), config.EvalRateLimit),
	}

	e.GET("/_health", s.handleHealthCheck)
	e.POST("/moderation/evaluate", s.handleEvaluate)
	e.GET("/moderation/sanctions/:group/:user", s.handleGetSanctions)
	e.POST("/moderation/sanctions/:group/:user/revoke", s.handleRevoke)
	e.GET("/moderation/warnings/:group/:user", s.handleGetWarnings)

	return s
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

// Run serves the moderation API until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, bind string) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(bind); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down moderation API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type evaluateRequest struct {
	SenderID   int64  `json:"sender_id"`
	GroupID    int64  `json:"group_id"`
	Text       string `json:"text"`
	ReceivedAt string `json:"received_at,omitempty"`
}

type violationView struct {
	Kind     string `json:"kind"`
	Severity int    `json:"severity"`
}

type evaluateResponse struct {
	Action            string          `json:"action"`
	DurationSec       int64           `json:"duration_sec,omitempty"`
	Permanent         bool            `json:"permanent,omitempty"`
	Reason            string          `json:"reason,omitempty"`
	Rule              string          `json:"rule,omitempty"`
	Violations        []violationView `json:"violations,omitempty"`
	PointsTotal       int             `json:"points_total"`
	AlreadySanctioned bool            `json:"already_sanctioned,omitempty"`
}

func (s *Server) handleEvaluate(c echo.Context) error {
	if !s.limiter.Allow() {
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "evaluation rate limit exceeded"})
	}

	var req evaluateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	msg := moderation.Message{
		SenderID:   req.SenderID,
		GroupID:    req.GroupID,
		Text:       req.Text,
		ReceivedAt: time.Now(),
	}
	if req.ReceivedAt != "" {
		at, err := time.Parse(time.RFC3339, req.ReceivedAt)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "received_at must be RFC 3339"})
		}
		msg.ReceivedAt = at
	}

	res, err := s.engine.Evaluate(c.Request().Context(), msg)
	if err != nil {
		s.logger.Error("evaluation failed", "err", err, "user", req.SenderID, "group", req.GroupID)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "evaluation unavailable"})
	}

	out := evaluateResponse{
		Action:            res.Decision.Action.String(),
		Reason:            res.Decision.Reason,
		Rule:              res.Decision.RuleApplied,
		PointsTotal:       res.PointsTotal,
		AlreadySanctioned: res.Existing != nil,
	}
	if res.Decision.Permanent() {
		out.Permanent = true
	} else if res.Decision.Duration > 0 {
		out.DurationSec = int64(res.Decision.Duration / time.Second)
	}
	for _, v := range res.Violations {
		out.Violations = append(out.Violations, violationView{Kind: string(v.Kind), Severity: v.Severity})
	}
	return c.JSON(http.StatusOK, out)
}

type sanctionView struct {
	Kind      string     `json:"kind"`
	AppliedAt time.Time  `json:"applied_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Permanent bool       `json:"permanent"`
	Reason    string     `json:"reason,omitempty"`
}

func subjectKey(c echo.Context) (moderation.UserKey, error) {
	group, err := strconv.ParseInt(c.Param("group"), 10, 64)
	if err != nil {
		return moderation.UserKey{}, errors.New("invalid group ID")
	}
	user, err := strconv.ParseInt(c.Param("user"), 10, 64)
	if err != nil {
		return moderation.UserKey{}, errors.New("invalid user ID")
	}
	return moderation.UserKey{UserID: user, GroupID: group}, nil
}

func (s *Server) handleGetSanctions(c echo.Context) error {
	key, err := subjectKey(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	now := time.Now()
	var out []sanctionView
	for _, kind := range []sanction.Kind{sanction.KindMute, sanction.KindBan} {
		sanc, active, err := s.engine.Sanctions.Get(c.Request().Context(), key, kind, now)
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "sanction store unavailable"})
		}
		if active {
			out = append(out, sanctionView{
				Kind:      string(sanc.Kind),
				AppliedAt: sanc.AppliedAt,
				ExpiresAt: sanc.ExpiresAt,
				Permanent: sanc.Permanent(),
				Reason:    sanc.Reason,
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"sanctions": out})
}

type revokeRequest struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

func (s *Server) handleRevoke(c echo.Context) error {
	key, err := subjectKey(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	var req revokeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	kind := sanction.Kind(req.Kind)
	if kind != sanction.KindMute && kind != sanction.KindBan {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "kind must be mute or ban"})
	}

	revoked, err := s.engine.Revoke(c.Request().Context(), key, kind, req.Reason)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "sanction store unavailable"})
	}
	if !revoked {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no active sanction of that kind"})
	}
	return c.JSON(http.StatusOK, map[string]bool{"revoked": true})
}

type warningView struct {
	ID        string     `json:"id"`
	Level     string     `json:"level"`
	Points    int        `json:"points"`
	Reason    string     `json:"reason,omitempty"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (s *Server) handleGetWarnings(c echo.Context) error {
	key, err := subjectKey(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	now := time.Now()
	active, err := s.engine.Warnings.Active(c.Request().Context(), key, now)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "warning store unavailable"})
	}
	points, err := s.engine.Warnings.ActivePoints(c.Request().Context(), key, now)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "warning store unavailable"})
	}

	var out []warningView
	for _, w := range active {
		out = append(out, warningView{
			ID:        w.ID,
			Level:     string(w.Level),
			Points:    w.Points,
			Reason:    w.Reason,
			IssuedAt:  w.IssuedAt,
			ExpiresAt: w.ExpiresAt,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"warnings": out, "points_total": points})
}
