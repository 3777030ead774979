package services

import (
	"cmp"
	"context"
	"fmt"
	"github.com/asaskevich/EventBus"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/maxaizer/car-tracker/internal/domain/events"
	"github.com/maxaizer/car-tracker/internal/domain/models"
	"github.com/maxaizer/car-tracker/internal/logger"
	"github.com/maxaizer/car-tracker/internal/repositories"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"slices"
	"strings"
	"time"
)

type Store interface {
	Load(ctx context.Context) (models.Snapshot, error)
	Save(ctx context.Context, snapshot models.Snapshot) error
	WithLock(ctx context.Context, fn func(ctx context.Context) error) error
}

type Limits struct {
	MaxSearchesPerUser  int
	MaxResultsPerSearch int
}

type NotificationTarget struct {
	UserID int64
	Search *models.Search
}

type RegistryStats struct {
	Users     int `json:"users"`
	Searches  int `json:"searches"`
	Notifying int `json:"notifying"`
}

type PricedAd struct {
	models.AdRecord
	Platform   models.Platform `json:"platform"`
	PriceValue float64         `json:"price_num"`
}

// SearchRegistry owns every change of the stored searches. Each mutation is
// a load-modify-save cycle under the store lock; reads go to the store
// directly and may be slightly stale.
type SearchRegistry struct {
	store    Store
	bus      EventBus.Bus
	limits   Limits
	validate *validator.Validate
	now      func() time.Time
}

func NewSearchRegistry(store Store, bus EventBus.Bus, limits Limits) (*SearchRegistry, error) {

	if store == nil {
		return nil, errors.New("store is nil")
	}
	if bus == nil {
		return nil, errors.New("bus is nil")
	}
	if limits.MaxSearchesPerUser <= 0 || limits.MaxResultsPerSearch <= 0 {
		return nil, fmt.Errorf("limits must be greater than zero: %+v", limits)
	}

	return &SearchRegistry{
		store:    store,
		bus:      bus,
		limits:   limits,
		validate: validator.New(),
		now:      time.Now,
	}, nil
}

func (r *SearchRegistry) Limits() Limits {
	return r.limits
}

func (r *SearchRegistry) timestamp() models.Timestamp {
	return models.NewTimestamp(r.now())
}

// update refuses to overwrite a snapshot that could not be decoded.
func (r *SearchRegistry) update(ctx context.Context, fn func(snapshot models.Snapshot) (bool, error)) error {
	return r.store.WithLock(ctx, func(ctx context.Context) error {
		snapshot, err := r.store.Load(ctx)
		if err != nil {
			return err
		}
		changed, err := fn(snapshot)
		if err != nil || !changed {
			return err
		}
		return r.store.Save(ctx, snapshot)
	})
}

func (r *SearchRegistry) read(ctx context.Context) (models.Snapshot, error) {
	snapshot, err := r.store.Load(ctx)
	if errors.Is(err, repositories.ErrCorruptSnapshot) {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeStorage).Errorf("searches are unreadable: %v", err)
		return models.Snapshot{}, nil
	}
	return snapshot, err
}

// SaveSearch creates a search or replaces the results of the search with the
// same params. An empty id with isNew false means the user is at quota.
func (r *SearchRegistry) SaveSearch(ctx context.Context, userID int64, platform models.Platform,
	params models.Params, rawAds []models.RawAd, notifications bool) (string, bool, error) {

	if !platform.IsKnown() {
		return "", false, fmt.Errorf("unknown platform: %q", platform)
	}
	if params == nil {
		params = models.Params{}
	}
	ads := models.NormalizeAds(rawAds)

	var searchID string
	var isNew bool

	err := r.update(ctx, func(snapshot models.Snapshot) (bool, error) {
		now := r.timestamp()
		userSearches := snapshot[userID]

		if existing := userSearches.FindByParams(platform, params); existing != nil {
			existing.SetResults(ads, r.limits.MaxResultsPerSearch)
			existing.UpdatedAt = now
			existing.LastCheck = now
			searchID = existing.ID
			return true, nil
		}

		if userSearches.Count() >= r.limits.MaxSearchesPerUser {
			return false, nil
		}

		search := &models.Search{
			ID:            uuid.NewString(),
			Platform:      platform,
			Params:        params,
			Notifications: notifications,
			CreatedAt:     now,
			UpdatedAt:     now,
			LastCheck:     now,
		}
		search.SetResults(ads, r.limits.MaxResultsPerSearch)

		if userSearches == nil {
			userSearches = models.UserSearches{}
			snapshot[userID] = userSearches
		}
		userSearches[platform] = append(userSearches[platform], search)

		searchID, isNew = search.ID, true
		return true, nil
	})
	if err != nil {
		return "", false, err
	}

	if searchID == "" {
		log.Infof("search quota reached for user %v", userID)
	} else {
		log.Infof("saved search %v for user %v, new: %v", searchID, userID, isNew)
	}
	return searchID, isNew, nil
}

func (r *SearchRegistry) DeleteSearch(ctx context.Context, userID int64, searchID string) (bool, error) {

	var removed bool

	err := r.update(ctx, func(snapshot models.Snapshot) (bool, error) {
		userSearches, ok := snapshot[userID]
		if !ok {
			return false, nil
		}
		if _, removed = userSearches.Remove(searchID); !removed {
			return false, nil
		}
		if len(userSearches) == 0 {
			delete(snapshot, userID)
		}
		return true, nil
	})
	if err != nil || !removed {
		return false, err
	}

	r.bus.Publish(events.SearchDeletedTopic, events.SearchDeleted{UserID: userID, SearchID: searchID})
	return true, nil
}

// ToggleNotifications returns the new flag value, found is false when the
// search does not exist.
func (r *SearchRegistry) ToggleNotifications(ctx context.Context, userID int64, searchID string) (bool, bool, error) {

	var enabled, found bool

	err := r.update(ctx, func(snapshot models.Snapshot) (bool, error) {
		search, _, ok := snapshot[userID].Find(searchID)
		if !ok {
			return false, nil
		}
		search.Notifications = !search.Notifications
		search.UpdatedAt = r.timestamp()
		enabled, found = search.Notifications, true
		return true, nil
	})
	if err != nil {
		return false, false, err
	}
	return enabled, found, nil
}

// UpdateSearch applies fn to the stored search under the store lock. The
// snapshot is saved only when fn reports a change.
func (r *SearchRegistry) UpdateSearch(ctx context.Context, userID int64, searchID string,
	fn func(search *models.Search, now models.Timestamp) bool) (bool, error) {

	var found bool

	err := r.update(ctx, func(snapshot models.Snapshot) (bool, error) {
		search, _, ok := snapshot[userID].Find(searchID)
		if !ok {
			return false, nil
		}
		found = true
		return fn(search, r.timestamp()), nil
	})
	return found, err
}

func (r *SearchRegistry) ListSearches(ctx context.Context, userID int64) (models.UserSearches, error) {
	snapshot, err := r.read(ctx)
	if err != nil {
		return nil, err
	}
	if userSearches, ok := snapshot[userID]; ok {
		return userSearches, nil
	}
	return models.UserSearches{}, nil
}

// GetSearch returns nil without error when the search does not exist.
func (r *SearchRegistry) GetSearch(ctx context.Context, userID int64, searchID string) (*models.Search, error) {
	userSearches, err := r.ListSearches(ctx, userID)
	if err != nil {
		return nil, err
	}
	search, platform, ok := userSearches.Find(searchID)
	if !ok {
		return nil, nil
	}
	search.Platform = platform
	return search, nil
}

func (r *SearchRegistry) GetResults(ctx context.Context, userID int64, searchID string) ([]models.AdRecord, error) {
	search, err := r.GetSearch(ctx, userID, searchID)
	if err != nil || search == nil {
		return []models.AdRecord{}, err
	}
	return search.OrderedResults(), nil
}

// CleanupOld removes searches without activity for longer than maxAgeDays.
// Searches with unreadable timestamps are removed too.
func (r *SearchRegistry) CleanupOld(ctx context.Context, maxAgeDays int) (int, error) {

	var deleted []events.SearchDeleted
	cutoff := r.now().UTC().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)

	err := r.update(ctx, func(snapshot models.Snapshot) (bool, error) {
		deleted = deleted[:0]
		for userID, userSearches := range snapshot {
			for platform, searches := range userSearches {
				kept := searches[:0]
				for _, search := range searches {
					activity, err := search.LastActivity()
					if err != nil || activity.Before(cutoff) {
						deleted = append(deleted, events.SearchDeleted{UserID: userID, SearchID: search.ID})
						continue
					}
					kept = append(kept, search)
				}
				if len(kept) == 0 {
					delete(userSearches, platform)
				} else {
					userSearches[platform] = kept
				}
			}
			if len(userSearches) == 0 {
				delete(snapshot, userID)
			}
		}
		return len(deleted) > 0, nil
	})
	if err != nil {
		return 0, err
	}

	for _, event := range deleted {
		r.bus.Publish(events.SearchDeletedTopic, event)
	}
	return len(deleted), nil
}

// ImportSearches admits exported searches of a user. Invalid entries, known
// ids and duplicate params are skipped; admission stops at the quota.
func (r *SearchRegistry) ImportSearches(ctx context.Context, userID int64, data models.UserSearches) (int, error) {

	imported := 0

	err := r.update(ctx, func(snapshot models.Snapshot) (bool, error) {
		imported = 0
		knownIDs := make(map[string]struct{})
		for _, userSearches := range snapshot {
			for _, searches := range userSearches {
				for _, search := range searches {
					knownIDs[search.ID] = struct{}{}
				}
			}
		}

		userSearches := snapshot[userID]
		if userSearches == nil {
			userSearches = models.UserSearches{}
		}
		now := r.timestamp()

		for _, platform := range data.SortedPlatforms() {
			if !platform.IsKnown() {
				log.WithField(logger.ErrorTypeField, logger.ErrorTypeImport).
					Warnf("skipping searches of unknown platform %q for user %v", platform, userID)
				continue
			}
			for _, candidate := range data[platform] {
				if userSearches.Count() >= r.limits.MaxSearchesPerUser {
					break
				}
				if candidate == nil {
					continue
				}
				if err := r.validate.Struct(candidate); err != nil {
					log.WithField(logger.ErrorTypeField, logger.ErrorTypeImport).
						Warnf("skipping invalid search for user %v: %v", userID, err)
					continue
				}
				if _, exists := knownIDs[candidate.ID]; exists {
					continue
				}
				if userSearches.FindByParams(platform, candidate.Params) != nil {
					continue
				}

				search := r.admit(candidate, platform, now)
				userSearches[platform] = append(userSearches[platform], search)
				knownIDs[search.ID] = struct{}{}
				imported++
			}
		}

		if imported > 0 {
			snapshot[userID] = userSearches
		}
		return imported > 0, nil
	})
	if err != nil {
		return 0, err
	}

	log.Infof("imported %v searches for user %v", imported, userID)
	return imported, nil
}

func (r *SearchRegistry) admit(candidate *models.Search, platform models.Platform, now models.Timestamp) *models.Search {
	search := candidate.Clone()
	search.Platform = platform
	search.SetResults(search.OrderedResults(), r.limits.MaxResultsPerSearch)
	if search.CreatedAt == "" {
		search.CreatedAt = now
	}
	if search.UpdatedAt == "" {
		search.UpdatedAt = now
	}
	return search
}

// NotificationTargets lists every search with notifications on, ordered by
// user and platform.
func (r *SearchRegistry) NotificationTargets(ctx context.Context) ([]NotificationTarget, error) {
	snapshot, err := r.read(ctx)
	if err != nil {
		return nil, err
	}

	var targets []NotificationTarget
	for _, userID := range snapshot.SortedUsers() {
		userSearches := snapshot[userID]
		for _, platform := range userSearches.SortedPlatforms() {
			for _, search := range userSearches[platform] {
				if !search.Notifications {
					continue
				}
				search.Platform = platform
				targets = append(targets, NotificationTarget{UserID: userID, Search: search})
			}
		}
	}
	return targets, nil
}

func (r *SearchRegistry) Stats(ctx context.Context) (RegistryStats, error) {
	snapshot, err := r.read(ctx)
	if err != nil {
		return RegistryStats{}, err
	}

	stats := RegistryStats{Users: len(snapshot), Searches: snapshot.Count()}
	for _, userSearches := range snapshot {
		for _, searches := range userSearches {
			stats.Notifying += lo.CountBy(searches, func(s *models.Search) bool { return s.Notifications })
		}
	}
	return stats, nil
}

// AdsByPlatform flattens the cached results of every search of the user.
func (r *SearchRegistry) AdsByPlatform(ctx context.Context, userID int64) (map[models.Platform][]models.AdRecord, error) {
	userSearches, err := r.ListSearches(ctx, userID)
	if err != nil {
		return nil, err
	}

	ads := make(map[models.Platform][]models.AdRecord, len(userSearches))
	for platform, searches := range userSearches {
		for _, search := range searches {
			ads[platform] = append(ads[platform], search.OrderedResults()...)
		}
	}
	return ads, nil
}

// UniqueBrandsAndModels maps a lower-cased brand to the models seen for it.
func (r *SearchRegistry) UniqueBrandsAndModels(ctx context.Context, userID int64) (map[string][]string, error) {
	ads, err := r.AdsByPlatform(ctx, userID)
	if err != nil {
		return nil, err
	}

	brandModels := make(map[string][]string)
	for _, platformAds := range ads {
		for _, ad := range platformAds {
			if !ad.HasBrandModel() {
				continue
			}
			model := strings.TrimSpace(ad.Model)
			if !slices.Contains(brandModels[ad.BrandKey], model) {
				brandModels[ad.BrandKey] = append(brandModels[ad.BrandKey], model)
			}
		}
	}
	for brand := range brandModels {
		slices.Sort(brandModels[brand])
	}
	return brandModels, nil
}

// AdsByModel returns the ads of one platform matching brand and model
// exactly, cheapest first.
func (r *SearchRegistry) AdsByModel(ctx context.Context, userID int64, brand string, model string,
	platform models.Platform) ([]PricedAd, error) {

	userSearches, err := r.ListSearches(ctx, userID)
	if err != nil {
		return nil, err
	}

	brand, model = models.NormalizeName(brand), models.NormalizeName(model)
	var result []PricedAd

	for _, search := range userSearches[platform] {
		for _, ad := range search.OrderedResults() {
			adBrand, adModel := ad.BrandKey, ad.ModelKey
			if adBrand == "" || adModel == "" {
				titleBrand, titleModel := titleTokens(ad.Title)
				adBrand = lo.Ternary(adBrand == "", titleBrand, adBrand)
				adModel = lo.Ternary(adModel == "", titleModel, adModel)
			}
			if adBrand == brand && adModel == model {
				result = append(result, PricedAd{AdRecord: ad, Platform: platform, PriceValue: ad.PriceValue()})
			}
		}
	}

	slices.SortStableFunc(result, func(a, b PricedAd) int { return cmp.Compare(a.PriceValue, b.PriceValue) })
	return result, nil
}

func titleTokens(title string) (string, string) {
	parts := strings.Fields(strings.ToLower(title))
	if len(parts) < 2 {
		return "", ""
	}
	return parts[0], parts[1]
}
