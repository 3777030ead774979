package services

import (
	"context"
	"fmt"
	"github.com/maxaizer/car-tracker/internal/domain/models"
	"github.com/maxaizer/car-tracker/internal/logger"
	"github.com/maxaizer/car-tracker/internal/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"time"
)

type AdsFetcher interface {
	FetchAds(ctx context.Context, params models.Params) ([]models.RawAd, error)
}

// RecheckEngine re-scrapes a search and reports the ads its cached results
// have not seen. The cache is replaced wholesale, never merged.
type RecheckEngine struct {
	registry *SearchRegistry
	fetchers map[models.Platform]AdsFetcher
	keep     int
}

func NewRecheckEngine(registry *SearchRegistry, fetchers map[models.Platform]AdsFetcher, keep int) (*RecheckEngine, error) {

	if registry == nil {
		return nil, errors.New("registry is nil")
	}
	if keep <= 0 {
		return nil, errors.New("keep must be greater than zero")
	}

	return &RecheckEngine{
		registry: registry,
		fetchers: fetchers,
		keep:     min(keep, registry.Limits().MaxResultsPerSearch),
	}, nil
}

// Recheck returns the new ads of the search. A failed scrape is logged and
// reported as no new ads; only storage failures are returned as errors.
func (e *RecheckEngine) Recheck(ctx context.Context, userID int64, search *models.Search) ([]models.AdRecord, error) {

	fetcher, ok := e.fetchers[search.Platform]
	if !ok {
		return nil, fmt.Errorf("no scraper for platform %q", search.Platform)
	}

	start := time.Now()
	raws, err := fetcher.FetchAds(ctx, search.Params)
	metrics.RecheckStepDuration.WithLabelValues("fetch").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.RecheckFailuresCounter.WithLabelValues(string(search.Platform)).Inc()
		if !errors.Is(err, context.Canceled) {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeScraper).
				Errorf("failed to fetch ads for search %v: %v", search.ID, err)
		}
		return nil, nil
	}

	fresh := models.NormalizeAds(raws)
	var newAds []models.AdRecord

	start = time.Now()
	found, err := e.registry.UpdateSearch(ctx, userID, search.ID, func(stored *models.Search, now models.Timestamp) bool {
		newAds = diffAds(stored, fresh)
		stored.LastCheck = now
		if len(newAds) > 0 {
			stored.SetResults(fresh, e.keep)
			stored.UpdatedAt = now
		}
		return true
	})
	metrics.RecheckStepDuration.WithLabelValues("store").Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, fmt.Errorf("failed to store recheck of search %v: %w", search.ID, err)
	}
	if !found {
		log.Infof("search %v was removed during recheck", search.ID)
		return nil, nil
	}

	if len(newAds) > 0 {
		metrics.NewAdsCounter.WithLabelValues(string(search.Platform)).Add(float64(len(newAds)))
	}
	log.Debugf("recheck of search %v fetched %v ads, new: %v", search.ID, len(fresh), len(newAds))
	return newAds, nil
}

// diffAds returns fresh ads whose ids are not among the stored results.
func diffAds(stored *models.Search, fresh []models.AdRecord) []models.AdRecord {
	var newAds []models.AdRecord
	seen := make(map[string]struct{}, len(fresh))
	for _, ad := range fresh {
		if _, dup := seen[ad.ID]; dup {
			continue
		}
		seen[ad.ID] = struct{}{}
		if !stored.HasResult(ad.ID) {
			newAds = append(newAds, ad)
		}
	}
	return newAds
}
