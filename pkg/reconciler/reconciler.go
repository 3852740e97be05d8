package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/felt/pkg/log"
	"github.com/cuemby/felt/pkg/metrics"
	"github.com/rs/zerolog"
)

// Defaults used when Config fields are zero
const (
	DefaultInterval           = time.Minute
	DefaultCheckpointInterval = 30 * time.Second
	checkpointTimeout         = 30 * time.Second
)

// Registry is the part of the session registry the reconciler drives
type Registry interface {
	SweepIdle() []string
	Checkpoint(ctx context.Context) (int, error)
}

// Config controls how often each pass runs
type Config struct {
	Interval           time.Duration // Idle session retirement
	CheckpointInterval time.Duration // Dirty session persistence
}

// Reconciler retires idle sessions and checkpoints dirty ones in the
// background
type Reconciler struct {
	registry Registry
	cfg      Config
	logger   zerolog.Logger

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewReconciler creates a new reconciler
func NewReconciler(registry Registry, cfg Config) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = DefaultCheckpointInterval
	}
	return &Reconciler{
		registry: registry,
		cfg:      cfg,
		logger:   log.WithComponent("reconciler"),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the reconciliation loop
func (r *Reconciler) Start() {
	go r.run()
}

// Stop ends the loop and writes a final checkpoint
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		<-r.done
		r.checkpoint()
	})
}

func (r *Reconciler) run() {
	defer close(r.done)

	sweep := time.NewTicker(r.cfg.Interval)
	defer sweep.Stop()
	checkpoint := time.NewTicker(r.cfg.CheckpointInterval)
	defer checkpoint.Stop()

	for {
		select {
		case <-sweep.C:
			r.reconcile()
		case <-checkpoint.C:
			r.checkpoint()
		case <-r.stopCh:
			return
		}
	}
}

// reconcile performs one idle retirement cycle
func (r *Reconciler) reconcile() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconciliationDuration)

	if retired := r.registry.SweepIdle(); len(retired) > 0 {
		r.logger.Info().Strs("sessions", retired).Msg("Retired idle sessions")
	}
}

func (r *Reconciler) checkpoint() {
	ctx, cancel := context.WithTimeout(context.Background(), checkpointTimeout)
	defer cancel()

	saved, err := r.registry.Checkpoint(ctx)
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentStorage, false, err.Error())
		r.logger.Error().Err(err).Int("saved", saved).Msg("Checkpoint incomplete")
		return
	}
	metrics.UpdateComponent(metrics.ComponentStorage, true, "")
	if saved > 0 {
		r.logger.Debug().Int("saved", saved).Msg("Checkpointed sessions")
	}
}
