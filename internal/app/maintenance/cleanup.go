package maintenance

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/buildx-app/backend/internal/services"
	"github.com/buildx-app/backend/pkg/logger"
)

const defaultPurgeSpec = "*/10 * * * *"

// Cleaner periodically removes expired one-time codes. Consumed codes
// are covered by the same sweep once their expiry passes.
type Cleaner struct {
	otp      *services.OTPService
	cron     *cron.Cron
	log      *zap.Logger
	schedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithSchedule overrides the cron specification for the purge job.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(otp *services.OTPService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		otp:      otp,
		schedule: defaultPurgeSpec,
		log:      logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the purge job with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.otp == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		if _, err := c.otp.PurgeExpired(context.Background()); err != nil {
			c.log.Warn("one-time code purge failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes the purge immediately. Used in tests and during
// graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.otp == nil {
		return nil
	}

	removed, err := c.otp.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		c.log.Info("purged expired one-time codes", zap.Int64("count", removed))
	}
	return nil
}
