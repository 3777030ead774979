package services

import (
	"context"
	"github.com/maxaizer/car-tracker/internal/logger"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"time"
)

type searchesCleanup interface {
	CleanupOld(ctx context.Context, maxAgeDays int) (int, error)
}

type SearchesCleaner struct {
	searches   searchesCleanup
	cron       *cron.Cron
	maxAgeDays int
}

func NewSearchesCleaner(searches searchesCleanup, schedule string, maxAgeDays int) (*SearchesCleaner, error) {

	if maxAgeDays <= 0 {
		return nil, errors.New("max age in days must be greater than zero")
	}

	sc := &SearchesCleaner{
		searches:   searches,
		cron:       cron.New(),
		maxAgeDays: maxAgeDays,
	}

	_, err := sc.cron.AddFunc(schedule, sc.cleanOldSearches)
	if err != nil {
		return nil, err
	}

	sc.cron.Start()
	log.Infof("searches cleaner started, schedule: %q, max age in days: %d", schedule, sc.maxAgeDays)
	return sc, nil
}

func (sc *SearchesCleaner) Stop() {
	<-sc.cron.Stop().Done()
}

func (sc *SearchesCleaner) cleanOldSearches() {
	removed, err := sc.searches.CleanupOld(context.Background(), sc.maxAgeDays)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeStorage).Errorf("failed to clean old searches: %v", err)
	} else {
		log.Infof("old searches were cleaned at %v, removed: %v", time.Now(), removed)
	}
}
