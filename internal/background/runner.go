package background

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"catalog-service/internal/config"
	"catalog-service/internal/services"
)

// Runner manages scheduled maintenance jobs for the service.
type Runner struct {
	paymentSvc *services.PaymentService
	config     config.CleanupConfig
	logger     *logrus.Logger
	cron       *cron.Cron
}

// NewRunner creates a new background runner.
func NewRunner(paymentSvc *services.PaymentService, cfg config.CleanupConfig, logger *logrus.Logger) *Runner {
	return &Runner{
		paymentSvc: paymentSvc,
		config:     cfg,
		logger:     logger,
		cron:       cron.New(),
	}
}

// Start registers and begins the scheduled jobs.
func (r *Runner) Start() error {
	_, err := r.cron.AddFunc(r.config.Schedule, r.executePurge)
	if err != nil {
		return err
	}

	r.cron.Start()
	r.logger.WithFields(logrus.Fields{
		"schedule":        r.config.Schedule,
		"retention_hours": r.config.RetentionHours,
	}).Info("Background job runner started")

	// Catch any rows that went stale while the service was down.
	go r.executePurge()

	return nil
}

// Stop gracefully stops all scheduled jobs, waiting for any running job to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()

	select {
	case <-ctx.Done():
		r.logger.Info("Background job runner stopped")
	case <-time.After(30 * time.Second):
		r.logger.Warn("Background job runner stop timeout")
	}
}

// executePurge removes payment process rows older than the retention window.
func (r *Runner) executePurge() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	retention := time.Duration(r.config.RetentionHours) * time.Hour
	purged, err := r.paymentSvc.PurgeStaleProcesses(ctx, retention)
	if err != nil {
		r.logger.WithError(err).Error("Payment process purge job failed")
		return
	}
	if purged > 0 {
		r.logger.WithField("purged", purged).Info("Purged stale payment processes")
	}
}
