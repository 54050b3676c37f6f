package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/store"
)

// Runner executes one evaluation round.
type Runner interface {
	Run(ctx context.Context, profile domain.StartupProfile) (*domain.EvaluationReport, error)
}

// Config defines server dependencies.
type Config struct {
	DB               *store.Database
	Runner           Runner
	Notifier         *EvaluationNotifier
	AllowedOrigins   []string
	Settings         map[string]any
	BatchConcurrency int
	MaxBatchSize     int
}

// Server wires HTTP handlers with persistence and the evaluation pipeline.
type Server struct {
	db               *store.Database
	runner           Runner
	allowedOrigins   []string
	settings         map[string]any
	evalNotifier     *EvaluationNotifier
	jobMu            sync.Mutex
	activeJob        *evaluationJob
	batchConcurrency int
	maxBatchSize     int
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DB == nil {
		return nil, errors.New("database required")
	}
	if cfg.Runner == nil {
		return nil, errors.New("evaluation runner required")
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NewEvaluationNotifier()
	}
	server := &Server{
		db:               cfg.DB,
		runner:           cfg.Runner,
		allowedOrigins:   cfg.AllowedOrigins,
		settings:         cfg.Settings,
		evalNotifier:     notifier,
		batchConcurrency: cfg.BatchConcurrency,
		maxBatchSize:     cfg.MaxBatchSize,
	}
	if server.batchConcurrency <= 0 {
		server.batchConcurrency = 2
	}
	if server.maxBatchSize <= 0 {
		server.maxBatchSize = 100
	}
	return server, nil
}

// Notifier exposes the websocket notifier so it can observe rounds.
func (s *Server) Notifier() *EvaluationNotifier {
	return s.evalNotifier
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)

	api := r.Group("/api")
	{
		api.POST("/evaluate", s.handleEvaluate)
		api.POST("/evaluate/batch", s.handleEvaluateBatch)
		api.GET("/evaluate/status", s.handleEvaluateStatus)
		api.DELETE("/evaluate/:jobID", s.handleCancelEvaluate)
		api.GET("/evaluate/stream", s.handleEvaluateStream)
		api.GET("/reports", s.handleListReports)
		api.GET("/reports/stats", s.handleStats)
		api.GET("/reports/:id", s.handleGetReport)
		api.GET("/export.json", s.handleExportJSON)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	sqlDB, err := s.db.GORM().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		s.renderError(c, http.StatusServiceUnavailable, fmt.Errorf("database unavailable: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	count, err := s.db.CountReports()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	out := gin.H{
		"reports":           count,
		"websocket_clients": s.evalNotifier.Clients(),
		"batch_concurrency": s.batchConcurrency,
		"max_batch_size":    s.maxBatchSize,
	}
	for k, v := range s.settings {
		out[k] = v
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleEvaluate(c *gin.Context) {
	var profile domain.StartupProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("decode startup profile: %w", err))
		return
	}
	save := !strings.EqualFold(strings.TrimSpace(c.Query("save")), "false")

	report, err := s.runner.Run(c.Request.Context(), profile)
	if report == nil {
		s.renderRunError(c, err)
		return
	}

	resp := EvaluateResponse{Report: FromReport(report)}
	if err != nil {
		resp.Error = err.Error()
	}
	if save {
		if saveErr := s.db.SaveReport(report); saveErr != nil {
			logrus.WithError(saveErr).WithField("report", report.ID).Error("persist evaluation report")
		} else {
			resp.Saved = true
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) renderRunError(c *gin.Context, err error) {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "problems": validation.Problems})
		return
	}
	if err == nil {
		err = errors.New("evaluation produced no report")
	}
	s.renderError(c, http.StatusInternalServerError, err)
}

func (s *Server) handleEvaluateStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.evalNotifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("evaluation websocket connected")
	defer s.evalNotifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("evaluation websocket closed")
			} else {
				logrus.WithError(err).Warn("evaluation websocket unexpected close")
			}
			break
		}
	}
}

func (s *Server) handleListReports(c *gin.Context) {
	query, err := reportQuery(c)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	if pageSize <= 0 {
		pageSize = 25
	}
	query.Offset = page * pageSize
	query.Limit = pageSize

	reports, total, err := s.db.ListReports(query)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	items := make([]ReportSummaryDTO, 0, len(reports))
	for _, report := range reports {
		items = append(items, SummaryFromReport(report))
	}
	c.JSON(http.StatusOK, ReportsResponse{Items: items, Total: total})
}

func (s *Server) handleGetReport(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("report id is required"))
		return
	}
	report, err := s.db.GetReport(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.renderError(c, http.StatusNotFound, err)
		} else {
			s.renderError(c, http.StatusInternalServerError, err)
		}
		return
	}
	c.JSON(http.StatusOK, FromReport(report))
}

func (s *Server) handleStats(c *gin.Context) {
	query, err := reportQuery(c)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	stats, err := s.db.Stats(query)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleExportJSON(c *gin.Context) {
	query, err := reportQuery(c)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	reports, _, err := s.db.ListReports(query)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]ReportDTO, 0, len(reports))
	for _, report := range reports {
		dtos = append(dtos, FromReport(report))
	}
	c.Header("Content-Disposition", "attachment; filename=ssff-reports.json")
	c.JSON(http.StatusOK, dtos)
}

func reportQuery(c *gin.Context) (store.ReportQuery, error) {
	query := store.ReportQuery{
		Sector:         c.Query("sector"),
		Recommendation: c.Query("recommendation"),
		Query:          c.Query("q"),
		Sort:           c.Query("sort"),
	}
	if rec := strings.ToLower(strings.TrimSpace(query.Recommendation)); rec != "" {
		switch domain.Recommendation(rec) {
		case domain.RecommendationInvest, domain.RecommendationWatch, domain.RecommendationPass, domain.RecommendationUndetermined:
		default:
			return store.ReportQuery{}, fmt.Errorf("invalid recommendation: %s", rec)
		}
	}
	if value := strings.TrimSpace(c.Query("degraded")); value != "" {
		degraded, err := strconv.ParseBool(value)
		if err != nil {
			return store.ReportQuery{}, fmt.Errorf("invalid degraded flag: %s", value)
		}
		query.Degraded = &degraded
	}
	return query, nil
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}
