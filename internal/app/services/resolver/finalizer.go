package resolver

import (
	"context"
	"errors"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/MissionForge/escrow_layer/internal/app/domain/dispute"
	"github.com/MissionForge/escrow_layer/internal/app/system"
	"github.com/MissionForge/escrow_layer/pkg/logger"
)

// Finalizer sweeps resolved disputes whose appeal window has elapsed and
// finalizes them on a schedule. Finalization is permissionless, so running
// it from a background job changes nothing about who could have called it.
type Finalizer struct {
	service  *Service
	schedule string
	log      *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

var _ system.Service = (*Finalizer)(nil)

// NewFinalizer builds a sweep job. An empty schedule defaults to once a
// minute.
func NewFinalizer(service *Service, schedule string, log *logger.Logger) *Finalizer {
	if log == nil {
		log = logger.NewDefault("resolver-finalizer")
	}
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &Finalizer{service: service, schedule: schedule, log: log}
}

func (f *Finalizer) Name() string { return "resolver-finalizer" }

func (f *Finalizer) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(f.schedule, func() { f.sweep(ctx) }); err != nil {
		return err
	}
	c.Start()
	f.cron = c
	f.running = true

	f.log.Infof("dispute finalizer started (%s)", f.schedule)
	return nil
}

func (f *Finalizer) Stop(ctx context.Context) error {
	f.mu.Lock()
	c := f.cron
	f.running = false
	f.cron = nil
	f.mu.Unlock()

	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Finalizer) sweep(ctx context.Context) {
	resolved, err := f.service.ListByState(ctx, dispute.StateResolved)
	if err != nil {
		f.log.WithError(err).Warn("list resolved disputes failed")
		return
	}

	for _, d := range resolved {
		if _, err := f.service.Finalize(ctx, d.ID); err != nil {
			// Disputes still inside their appeal window are expected here.
			if errors.Is(err, ErrAppealWindowOpen) {
				continue
			}
			f.log.WithError(err).Warnf("finalize dispute %d failed", d.ID)
			continue
		}
		f.log.Infof("dispute %d finalized by sweep", d.ID)
	}
}
