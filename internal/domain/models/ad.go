package models

import (
	"fmt"
	"github.com/google/uuid"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	NoTitle     = "Без названия"
	NoPrice     = "Не указана"
	Unspecified = "Не указано"
	NoURL       = "#"
)

var titleBrandModelRegex = regexp.MustCompile(`^([\p{L}\p{N}]+)\s+([\p{L}\p{N}]+)`)

// RawAd is a listing as returned by a scraper. Its shape differs per platform.
type RawAd map[string]any

// AdRecord is a canonical listing. Brand and Model keep the display case,
// BrandKey and ModelKey are the lower-cased forms used for matching.
type AdRecord struct {
	ID       string `json:"id,omitempty" csv:"id"`
	Title    string `json:"title" csv:"title"`
	Price    string `json:"price" csv:"price"`
	Brand    string `json:"brand" csv:"brand"`
	Model    string `json:"model" csv:"model"`
	BrandKey string `json:"brand_normalized" csv:"-"`
	ModelKey string `json:"model_normalized" csv:"-"`
	Address  string `json:"address" csv:"address"`
	URL      string `json:"url" csv:"url"`
	Date     string `json:"date" csv:"date"`
}

func (a AdRecord) PriceValue() float64 {
	return ParsePrice(a.Price)
}

func (a AdRecord) HasBrandModel() bool {
	return a.BrandKey != "" && a.ModelKey != ""
}

// ToRaw converts the record back to the scraper shape, so that normalizing an
// already normalized record yields the same record.
func (a AdRecord) ToRaw() RawAd {
	return RawAd{
		"id":      a.ID,
		"title":   a.Title,
		"price":   a.Price,
		"brand":   a.Brand,
		"model":   a.Model,
		"address": a.Address,
		"url":     a.URL,
		"date":    a.Date,
	}
}

func (r RawAd) text(keys ...string) string {
	for _, key := range keys {
		value, ok := r[key]
		if !ok || value == nil {
			continue
		}
		var s string
		switch v := value.(type) {
		case string:
			s = v
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			s = strconv.Itoa(v)
		case int64:
			s = strconv.FormatInt(v, 10)
		default:
			s = fmt.Sprint(v)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// NormalizeAd never fails: missing fields get sentinels and a missing id gets
// a generated one.
func NormalizeAd(raw RawAd) AdRecord {
	ad := AdRecord{
		ID:      raw.text("id"),
		Title:   raw.text("title"),
		Price:   raw.text("price"),
		Brand:   raw.text("brand"),
		Model:   raw.text("model"),
		Address: raw.text("address", "location"),
		URL:     raw.text("url", "link"),
		Date:    NormalizeDate(raw.text("date"), time.Now()),
	}

	if ad.ID == "" {
		ad.ID = uuid.NewString()
	}
	if ad.Title == "" {
		ad.Title = NoTitle
	}
	if ad.Price == "" {
		ad.Price = NoPrice
	}
	if ad.Address == "" {
		ad.Address = Unspecified
	}
	if ad.URL == "" {
		ad.URL = NoURL
	}
	if ad.Date == "" {
		ad.Date = Unspecified
	}

	if ad.Title != NoTitle && (isUnspecified(ad.Brand) || isUnspecified(ad.Model)) {
		brand, model, ok := ExtractBrandModel(ad.Title)
		if ok {
			if isUnspecified(ad.Brand) {
				ad.Brand = brand
			}
			if isUnspecified(ad.Model) {
				ad.Model = model
			}
		}
	}
	if isUnspecified(ad.Brand) {
		ad.Brand = Unspecified
	}
	if isUnspecified(ad.Model) {
		ad.Model = Unspecified
	}

	ad.BrandKey = matchKey(ad.Brand)
	ad.ModelKey = matchKey(ad.Model)
	return ad
}

func NormalizeAds(raws []RawAd) []AdRecord {
	ads := make([]AdRecord, 0, len(raws))
	for _, raw := range raws {
		ads = append(ads, NormalizeAd(raw))
	}
	return ads
}

// ExtractBrandModel takes the first two words of a title. It is a heuristic
// and fails on titles that do not start with two alphanumeric words.
func ExtractBrandModel(title string) (string, string, bool) {
	match := titleBrandModelRegex.FindStringSubmatch(strings.TrimSpace(title))
	if match == nil {
		return "", "", false
	}
	return match[1], match[2], true
}

func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func matchKey(s string) string {
	if isUnspecified(s) {
		return ""
	}
	return NormalizeName(s)
}

func isUnspecified(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == Unspecified
}
