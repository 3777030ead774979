package services

import (
	"context"
	"fmt"
	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/car-tracker/internal/domain/events"
	"github.com/maxaizer/car-tracker/internal/domain/models"
	"github.com/maxaizer/car-tracker/internal/logger"
	"github.com/maxaizer/car-tracker/internal/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"sync"
	"sync/atomic"
	"time"
)

type targetsSource interface {
	NotificationTargets(ctx context.Context) ([]NotificationTarget, error)
}

type rechecker interface {
	Recheck(ctx context.Context, userID int64, search *models.Search) ([]models.AdRecord, error)
}

type SweepReport struct {
	Searches int
	NewAds   int
	Failed   int
	Duration time.Duration
}

// RecheckScheduler periodically rechecks every search with notifications on
// and publishes the new ads. A failing search never stops the sweep.
type RecheckScheduler struct {
	bus             EventBus.Bus
	targets         targetsSource
	engine          rechecker
	interval        time.Duration
	workers         int
	searchContexts  sync.Map
	onSweepComplete func(SweepReport)
}

func NewRecheckScheduler(bus EventBus.Bus, targets targetsSource, engine rechecker,
	interval time.Duration, workers int) (*RecheckScheduler, error) {

	if bus == nil {
		return nil, errors.New("bus is nil")
	}
	if interval <= 0 {
		return nil, errors.New("interval must be positive")
	}
	if workers <= 0 {
		workers = 1
	}

	s := &RecheckScheduler{
		bus:      bus,
		targets:  targets,
		engine:   engine,
		interval: interval,
		workers:  workers,
	}
	if err := bus.Subscribe(events.SearchDeletedTopic, s.onSearchDeletedEvent); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *RecheckScheduler) WithSweepCompleteCallback(fn func(SweepReport)) *RecheckScheduler {
	s.onSweepComplete = fn
	return s
}

func (s *RecheckScheduler) Run(ctx context.Context) {
	interval := s.interval

	for {
		log.Infof("running recheck sweep at %v", time.Now())

		report := s.RunSweep(ctx)
		log.Infof("recheck sweep ended after %v: searches %v, new ads %v, failed %v",
			report.Duration, report.Searches, report.NewAds, report.Failed)

		var sleepTime time.Duration
		if report.Duration <= interval {
			sleepTime = interval - report.Duration
		} else {
			interval = report.Duration + s.interval
			log.Infof("recheck interval exceeded, extended to %v", interval)
		}

		log.Infof("next recheck sweep time is %v", time.Now().Add(sleepTime))
		select {
		case <-ctx.Done():
			log.Info("recheck scheduler stopped")
			return
		case <-time.After(sleepTime):
		}
	}
}

func (s *RecheckScheduler) RunSweep(ctx context.Context) SweepReport {
	startTime := time.Now()
	report := s.sweep(ctx)
	report.Duration = time.Since(startTime)

	metrics.SweepDuration.Observe(report.Duration.Seconds())
	if s.onSweepComplete != nil {
		s.onSweepComplete(report)
	}
	return report
}

func (s *RecheckScheduler) sweep(ctx context.Context) SweepReport {

	targets, err := s.targets.NotificationTargets(ctx)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeStorage).Errorf("failed to get searches to recheck: %v", err)
		return SweepReport{}
	}

	var newAds, failed atomic.Int64
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, s.workers)
	started := 0

loop:
	for _, target := range targets {
		select {
		case <-ctx.Done():
			break loop
		case semaphore <- struct{}{}:
		}

		searchCtx, cancel := context.WithCancel(ctx)
		s.searchContexts.Store(target.Search.ID, cancel)
		started++

		wg.Add(1)
		go func(target NotificationTarget) {
			defer wg.Done()
			defer func() { <-semaphore }()
			defer cancel()
			defer s.searchContexts.Delete(target.Search.ID)

			found, err := s.recheckSearch(searchCtx, target)
			if err != nil {
				failed.Add(1)
				log.WithField(logger.ErrorTypeField, logger.ErrorTypeStorage).
					Errorf("recheck of search %v failed: %v", target.Search.ID, err)
				return
			}
			newAds.Add(int64(found))
		}(target)
	}

	wg.Wait()
	return SweepReport{Searches: started, NewAds: int(newAds.Load()), Failed: int(failed.Load())}
}

func (s *RecheckScheduler) recheckSearch(ctx context.Context, target NotificationTarget) (found int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	ads, err := s.engine.Recheck(ctx, target.UserID, target.Search)
	if err != nil || len(ads) == 0 {
		return 0, err
	}

	s.bus.Publish(events.AdsFoundTopic, events.AdsFound{UserID: target.UserID, Search: *target.Search, Ads: ads})
	return len(ads), nil
}

func (s *RecheckScheduler) onSearchDeletedEvent(event events.SearchDeleted) {
	if cancel, ok := s.searchContexts.Load(event.SearchID); ok {
		cancel.(context.CancelFunc)()
		s.searchContexts.Delete(event.SearchID)
	}
}
