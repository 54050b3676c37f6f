package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/util"
)

// evaluationJob tracks the state of a running batch evaluation.
type evaluationJob struct {
	id        string
	cancel    context.CancelFunc
	startedAt time.Time
	total     int

	mu         sync.Mutex
	processed  int
	failed     int
	lastReport *ReportSummaryDTO
}

func (j *evaluationJob) record(report *domain.EvaluationReport, err error) (processed, failed int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.processed++
	if err != nil {
		j.failed++
	}
	if report != nil {
		summary := SummaryFromReport(report)
		j.lastReport = &summary
	}
	return j.processed, j.failed
}

func (j *evaluationJob) snapshot() (processed, failed int, last *ReportSummaryDTO) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.lastReport != nil {
		copied := *j.lastReport
		last = &copied
	}
	return j.processed, j.failed, last
}

func (s *Server) handleEvaluateBatch(c *gin.Context) {
	var req BatchEvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("decode batch request: %w", err))
		return
	}
	if len(req.Profiles) == 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("profiles are required"))
		return
	}
	if len(req.Profiles) > s.maxBatchSize {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("batch of %d profiles exceeds the limit of %d", len(req.Profiles), s.maxBatchSize))
		return
	}
	var problems []string
	for i, profile := range req.Profiles {
		var validation *domain.ValidationError
		if err := profile.Normalize().Validate(); errors.As(err, &validation) {
			for _, p := range validation.Problems {
				problems = append(problems, fmt.Sprintf("profiles[%d]: %s", i, p))
			}
		}
	}
	if len(problems) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid startup profiles", "problems": problems})
		return
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.activeJob != nil {
		s.renderError(c, http.StatusConflict, errors.New("evaluation already running"))
		return
	}

	job := s.startEvaluation(req)
	c.JSON(http.StatusAccepted, StartEvaluationResponse{
		JobID:     job.id,
		Total:     job.total,
		StartedAt: job.startedAt,
	})
}

// startEvaluation launches a new asynchronous batch job. The caller must hold s.jobMu.
func (s *Server) startEvaluation(req BatchEvaluateRequest) *evaluationJob {
	ctx, cancel := context.WithCancel(context.Background())
	job := &evaluationJob{
		id:        uuid.NewString(),
		cancel:    cancel,
		startedAt: time.Now().UTC(),
		total:     len(req.Profiles),
	}
	concurrency := s.batchConcurrency
	if req.Concurrency > 0 && req.Concurrency < concurrency {
		concurrency = req.Concurrency
	}
	s.activeJob = job
	go s.runEvaluation(ctx, job, req.Profiles, concurrency)
	return job
}

func (s *Server) runEvaluation(ctx context.Context, job *evaluationJob, profiles []domain.StartupProfile, concurrency int) {
	timer := util.StartTimer()
	log := logrus.WithFields(logrus.Fields{"job": job.id, "profiles": job.total, "concurrency": concurrency})
	log.Info("batch evaluation started")
	s.evalNotifier.Broadcast(StreamEvent{Type: eventJobStarted, JobID: job.id, Total: job.total})

	defer func() {
		job.cancel()
		s.jobMu.Lock()
		s.activeJob = nil
		s.jobMu.Unlock()
	}()

	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, profile := range profiles {
		profile := profile
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			report, err := s.runner.Run(ctx, profile)
			if report != nil {
				if saveErr := s.db.SaveReport(report); saveErr != nil {
					log.WithError(saveErr).WithField("report", report.ID).Error("persist evaluation report")
				}
			}
			if err != nil {
				log.WithError(err).WithField("startup", profile.Name).Warn("batch round failed")
			}
			processed, failed := job.record(report, err)
			event := StreamEvent{
				Type:      eventJobProgress,
				JobID:     job.id,
				Startup:   strings.TrimSpace(profile.Name),
				Total:     job.total,
				Completed: processed,
				Failed:    failed,
			}
			if report != nil {
				summary := SummaryFromReport(report)
				event.Report = &summary
			}
			if err != nil {
				event.Message = err.Error()
			}
			s.evalNotifier.Broadcast(event)
			return nil
		})
	}
	_ = g.Wait()

	processed, failed, _ := job.snapshot()
	final := StreamEvent{Type: eventJobCompleted, JobID: job.id, Total: job.total, Completed: processed, Failed: failed}
	if ctx.Err() != nil {
		final.Type = eventJobCancelled
		final.Message = "evaluation cancelled"
	}
	log.WithFields(logrus.Fields{
		"processed":   processed,
		"failed":      failed,
		"duration_ms": timer.ElapsedMs(),
		"state":       final.Type,
	}).Info("batch evaluation finished")
	s.evalNotifier.Broadcast(final)
}

func (s *Server) handleCancelEvaluate(c *gin.Context) {
	jobID := strings.TrimSpace(c.Param("jobID"))
	if jobID == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("job id required"))
		return
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.activeJob == nil {
		s.renderError(c, http.StatusNotFound, errors.New("no evaluation running"))
		return
	}
	if s.activeJob.id != jobID {
		s.renderError(c, http.StatusNotFound, errors.New("job not found"))
		return
	}

	s.activeJob.cancel()
	logrus.WithField("job", jobID).Info("evaluation cancellation requested")
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

func (s *Server) handleEvaluateStatus(c *gin.Context) {
	s.jobMu.Lock()
	job := s.activeJob
	s.jobMu.Unlock()

	resp := EvaluateStatusResponse{Running: job != nil}
	if job != nil {
		resp.JobID = job.id
		resp.Total = job.total
		resp.Processed, resp.Failed, resp.LastReport = job.snapshot()
	}
	if status := s.evalNotifier.LastStatus(); status != nil {
		resp.State = status.Type
		resp.Message = status.Message
		if job == nil && status.JobID != "" {
			resp.JobID = status.JobID
			resp.Total = status.Total
			resp.Processed = status.Completed
			resp.Failed = status.Failed
		}
	}
	c.JSON(http.StatusOK, resp)
}
