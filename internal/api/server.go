package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"airguard/internal/alerts"
	"airguard/internal/config"
	"airguard/internal/metrics"
	"airguard/internal/model"
)

type EngineControl interface {
	Recalibrate()
}

type Server struct {
	cfg        *config.Manager
	metrics    *metrics.Store
	collectors *metrics.Collectors
	alerts     *alerts.Store
	engine     EngineControl
	logger     *slog.Logger
	version    string
}

type statusResponse struct {
	Status     string                 `json:"status"`
	Time       string                 `json:"time"`
	Version    string                 `json:"version"`
	ConfigPath string                 `json:"config_path"`
	Engine     metrics.Status         `json:"engine"`
	LastAlarm  *model.AlarmTransition `json:"last_alarm_transition,omitempty"`
	Bridge     string                 `json:"bridge"`
	Dashboard  sinkStatus             `json:"dashboard"`
	Storage    sinkStatus             `json:"storage"`
	RecordLog  sinkStatus             `json:"record_log"`
	Thresholds thresholds             `json:"thresholds"`
}

type sinkStatus struct {
	Enabled bool   `json:"enabled"`
	Driver  string `json:"driver,omitempty"`
}

type thresholds struct {
	AlarmHigh      float64 `json:"alarm_high"`
	AlarmLow       float64 `json:"alarm_low"`
	ZThreshold     float64 `json:"z_threshold"`
	MatchThreshold float64 `json:"match_threshold"`
}

func NewServer(cfg *config.Manager, metricsStore *metrics.Store, collectors *metrics.Collectors, alertsStore *alerts.Store, engine EngineControl, logger *slog.Logger, version string) *Server {
	return &Server{
		cfg:        cfg,
		metrics:    metricsStore,
		collectors: collectors,
		alerts:     alertsStore,
		engine:     engine,
		logger:     logger,
		version:    version,
	}
}

// Handler builds the router. gin runs in release mode unless the caller set
// otherwise.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/status", s.handleStatus)
	r.GET("/records/latest", s.handleLatest)
	r.GET("/records", s.handleRecords)
	r.GET("/alarms", s.handleAlarms)
	if s.collectors != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.collectors.Registry, promhttp.HandlerOpts{})))
	}
	r.POST("/admin/clear", s.handleClear)
	r.POST("/admin/recalibrate", s.handleRecalibrate)
	return r
}

func Start(ctx context.Context, srv *Server) *http.Server {
	if srv == nil || srv.cfg == nil {
		return nil
	}
	logger := srv.logger
	current := srv.cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	httpServer := &http.Server{Addr: current.Addr, Handler: srv.Handler()}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(c *gin.Context) {
	cfg := s.cfg.Get()
	resp := statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		ConfigPath: s.cfg.Path(),
		Bridge:     cfg.Bridge.Driver,
		Dashboard:  sinkStatus{Enabled: cfg.Dashboard.Enabled, Driver: cfg.Dashboard.Driver},
		Storage:    sinkStatus{Enabled: cfg.Storage.Enabled, Driver: cfg.Storage.Driver},
		RecordLog:  sinkStatus{Enabled: cfg.RecordLog.Enabled},
		Thresholds: thresholds{
			AlarmHigh:      cfg.Alarm.High,
			AlarmLow:       cfg.Alarm.Low,
			ZThreshold:     cfg.Alarm.ZThreshold,
			MatchThreshold: cfg.Classifier.MatchThreshold,
		},
	}
	if s.metrics != nil {
		resp.Engine = s.metrics.Status()
	}
	if s.alerts != nil {
		if tr, ok := s.alerts.Last(); ok {
			resp.LastAlarm = &tr
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleLatest(c *gin.Context) {
	if s.metrics == nil {
		c.Status(http.StatusNotFound)
		return
	}
	rec, ok := s.metrics.Latest()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no records yet"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleRecords(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	var list []model.OutputRecord
	if s.metrics != nil {
		list = s.metrics.List(limit)
	}
	c.JSON(http.StatusOK, gin.H{
		"records": list,
		"count":   len(list),
	})
}

func (s *Server) handleAlarms(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	var list []model.AlarmTransition
	if sinceStr := c.Query("since"); sinceStr != "" {
		ts, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		if s.alerts != nil {
			list = s.alerts.Since(ts)
		}
	} else if s.alerts != nil {
		list = s.alerts.List(limit)
	}
	c.JSON(http.StatusOK, gin.H{
		"alarms": list,
		"count":  len(list),
	})
}

func (s *Server) handleClear(c *gin.Context) {
	var req struct {
		Target string `json:"target"`
	}
	_ = c.ShouldBindJSON(&req)
	target := strings.ToLower(strings.TrimSpace(req.Target))
	if target == "" {
		target = "all"
	}
	switch target {
	case "all":
		if s.metrics != nil {
			s.metrics.Clear()
		}
		if s.alerts != nil {
			s.alerts.Clear()
		}
	case "alarms":
		if s.alerts != nil {
			s.alerts.Clear()
		}
	case "records":
		if s.metrics != nil {
			s.metrics.Clear()
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown target"})
		return
	}
	if s.logger != nil {
		s.logger.Info("history cleared", "target", target)
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRecalibrate(c *gin.Context) {
	if s.engine == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "engine not available"})
		return
	}
	s.engine.Recalibrate()
	if s.logger != nil {
		s.logger.Info("recalibration requested")
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "ok"})
}

func parseLimit(c *gin.Context) (int, bool) {
	v := c.Query("limit")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return 0, false
	}
	return n, true
}
