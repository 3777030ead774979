package services

import (
	"cmp"
	"context"
	"github.com/maxaizer/car-tracker/internal/domain/models"
	"github.com/samber/lo"
	"maps"
	"math"
	"slices"
	"strings"
)

const examplesPerPlatform = 5

type adsSource interface {
	AdsByPlatform(ctx context.Context, userID int64) (map[models.Platform][]models.AdRecord, error)
	GetSearch(ctx context.Context, userID int64, searchID string) (*models.Search, error)
}

type PlatformSummary struct {
	Platform    models.Platform   `json:"platform"`
	MinPrice    float64           `json:"min_price"`
	MaxPrice    float64           `json:"max_price"`
	AvgPrice    float64           `json:"avg_price"`
	MedianPrice float64           `json:"median_price"`
	Count       int               `json:"count"`
	Examples    []models.AdRecord `json:"ads"`
}

type ModelSummary struct {
	Brand     string            `json:"brand"`
	Model     string            `json:"model"`
	Platforms []PlatformSummary `json:"platforms"`
	MinPrice  float64           `json:"min_price"`
	MaxPrice  float64           `json:"max_price"`
	TotalAds  int               `json:"total_ads"`
}

func (s ModelSummary) IsEmpty() bool {
	return len(s.Platforms) == 0
}

// PriceDifference compares the cheapest offers of one model on two platforms.
// Difference is A minus B; DifferencePercent is unsigned and relative to the
// larger of the two prices.
type PriceDifference struct {
	Key               string          `json:"key"`
	Brand             string          `json:"brand"`
	Model             string          `json:"model"`
	PriceA            float64         `json:"platform1_price"`
	PriceB            float64         `json:"platform2_price"`
	Difference        float64         `json:"price_difference"`
	DifferencePercent float64         `json:"price_difference_percent"`
	AdA               models.AdRecord `json:"platform1_ad"`
	AdB               models.AdRecord `json:"platform2_ad"`
	CountA            int             `json:"platform1_count"`
	CountB            int             `json:"platform2_count"`
}

type PlatformsComparison struct {
	PlatformA models.Platform   `json:"platform1"`
	PlatformB models.Platform   `json:"platform2"`
	Common    []PriceDifference `json:"common"`
	OnlyA     []PricedAd        `json:"only_first"`
	OnlyB     []PricedAd        `json:"only_second"`
}

type SearchesComparison struct {
	Common []models.AdRecord `json:"common"`
	OnlyA  []models.AdRecord `json:"only_first"`
	OnlyB  []models.AdRecord `json:"only_second"`
}

type ComparisonEngine struct {
	ads adsSource
}

func NewComparisonEngine(ads adsSource) *ComparisonEngine {
	return &ComparisonEngine{ads: ads}
}

// CompareByModel aggregates prices of a model across all platforms of the
// user. Brand and model match as substrings; ads without a price are skipped.
func (e *ComparisonEngine) CompareByModel(ctx context.Context, userID int64, brand string, model string) (ModelSummary, error) {

	summary := ModelSummary{Brand: brand, Model: model, Platforms: []PlatformSummary{}}

	adsByPlatform, err := e.ads.AdsByPlatform(ctx, userID)
	if err != nil {
		return summary, err
	}

	brandKey, modelKey := models.NormalizeName(brand), models.NormalizeName(model)

	for _, platform := range slices.Sorted(maps.Keys(adsByPlatform)) {
		matched := lo.Filter(adsByPlatform[platform], func(ad models.AdRecord, _ int) bool {
			return strings.Contains(ad.BrandKey, brandKey) && strings.Contains(ad.ModelKey, modelKey) &&
				ad.PriceValue() > 0
		})
		if len(matched) == 0 {
			continue
		}
		summary.Platforms = append(summary.Platforms, summarize(platform, matched))
	}

	if summary.IsEmpty() {
		return summary, nil
	}

	slices.SortStableFunc(summary.Platforms, func(a, b PlatformSummary) int {
		return cmp.Compare(a.MinPrice, b.MinPrice)
	})

	summary.MinPrice = math.Inf(1)
	for _, platform := range summary.Platforms {
		summary.MinPrice = min(summary.MinPrice, platform.MinPrice)
		summary.MaxPrice = max(summary.MaxPrice, platform.MaxPrice)
		summary.TotalAds += platform.Count
	}
	return summary, nil
}

func summarize(platform models.Platform, ads []models.AdRecord) PlatformSummary {
	prices := lo.Map(ads, func(ad models.AdRecord, _ int) float64 { return ad.PriceValue() })
	slices.Sort(prices)

	return PlatformSummary{
		Platform:    platform,
		MinPrice:    prices[0],
		MaxPrice:    prices[len(prices)-1],
		AvgPrice:    lo.Sum(prices) / float64(len(prices)),
		MedianPrice: prices[(len(prices)-1)/2],
		Count:       len(prices),
		Examples:    ads[:min(len(ads), examplesPerPlatform)],
	}
}

// ComparePlatforms groups ads of two platforms by brand and model. Ads with an
// unknown brand or model can't be grouped and are left out.
func (e *ComparisonEngine) ComparePlatforms(ctx context.Context, userID int64,
	platformA models.Platform, platformB models.Platform) (PlatformsComparison, error) {

	comparison := PlatformsComparison{
		PlatformA: platformA,
		PlatformB: platformB,
		Common:    []PriceDifference{},
		OnlyA:     []PricedAd{},
		OnlyB:     []PricedAd{},
	}

	adsByPlatform, err := e.ads.AdsByPlatform(ctx, userID)
	if err != nil {
		return comparison, err
	}

	groupsA := groupByModel(adsByPlatform[platformA])
	groupsB := groupByModel(adsByPlatform[platformB])

	for key, adsA := range groupsA {
		adsB, common := groupsB[key]
		if !common {
			comparison.OnlyA = append(comparison.OnlyA, pricedAds(platformA, adsA)...)
			continue
		}
		comparison.Common = append(comparison.Common, priceDifference(key, adsA, adsB))
	}
	for key, adsB := range groupsB {
		if _, common := groupsA[key]; !common {
			comparison.OnlyB = append(comparison.OnlyB, pricedAds(platformB, adsB)...)
		}
	}

	slices.SortFunc(comparison.Common, func(a, b PriceDifference) int {
		if c := cmp.Compare(math.Abs(b.Difference), math.Abs(a.Difference)); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	sortPricedAds(comparison.OnlyA)
	sortPricedAds(comparison.OnlyB)

	return comparison, nil
}

func groupByModel(ads []models.AdRecord) map[string][]models.AdRecord {
	groups := make(map[string][]models.AdRecord)
	for _, ad := range ads {
		if !ad.HasBrandModel() {
			continue
		}
		key := ad.BrandKey + "_" + ad.ModelKey
		groups[key] = append(groups[key], ad)
	}
	return groups
}

func priceDifference(key string, adsA []models.AdRecord, adsB []models.AdRecord) PriceDifference {
	adA, priceA := cheapest(adsA)
	adB, priceB := cheapest(adsB)

	diff := PriceDifference{
		Key:        key,
		Brand:      adA.Brand,
		Model:      adA.Model,
		PriceA:     priceA,
		PriceB:     priceB,
		Difference: priceA - priceB,
		AdA:        adA,
		AdB:        adB,
		CountA:     len(adsA),
		CountB:     len(adsB),
	}
	if larger := max(priceA, priceB); larger > 0 {
		diff.DifferencePercent = math.Round(math.Abs(diff.Difference)/larger*1000) / 10
	}
	return diff
}

// cheapest ignores unknown prices; without any known price the first ad is
// returned with price 0.
func cheapest(ads []models.AdRecord) (models.AdRecord, float64) {
	best, bestPrice := ads[0], 0.0
	for _, ad := range ads {
		price := ad.PriceValue()
		if price > 0 && (bestPrice == 0 || price < bestPrice) {
			best, bestPrice = ad, price
		}
	}
	return best, bestPrice
}

func pricedAds(platform models.Platform, ads []models.AdRecord) []PricedAd {
	return lo.Map(ads, func(ad models.AdRecord, _ int) PricedAd {
		return PricedAd{AdRecord: ad, Platform: platform, PriceValue: ad.PriceValue()}
	})
}

func sortPricedAds(ads []PricedAd) {
	slices.SortFunc(ads, func(a, b PricedAd) int {
		if c := cmp.Compare(a.PriceValue, b.PriceValue); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// CompareSearches splits the cached results of two searches by ad id. It
// returns found false when either search does not exist.
func (e *ComparisonEngine) CompareSearches(ctx context.Context, userID int64,
	searchA string, searchB string) (SearchesComparison, bool, error) {

	first, err := e.ads.GetSearch(ctx, userID, searchA)
	if err != nil || first == nil {
		return SearchesComparison{}, false, err
	}
	second, err := e.ads.GetSearch(ctx, userID, searchB)
	if err != nil || second == nil {
		return SearchesComparison{}, false, err
	}

	comparison := SearchesComparison{
		Common: []models.AdRecord{},
		OnlyA:  []models.AdRecord{},
		OnlyB:  []models.AdRecord{},
	}
	for _, ad := range first.OrderedResults() {
		if second.HasResult(ad.ID) {
			comparison.Common = append(comparison.Common, ad)
		} else {
			comparison.OnlyA = append(comparison.OnlyA, ad)
		}
	}
	for _, ad := range second.OrderedResults() {
		if !first.HasResult(ad.ID) {
			comparison.OnlyB = append(comparison.OnlyB, ad)
		}
	}
	return comparison, true, nil
}
