package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"
)

type Platform string

const (
	Avito  Platform = "avito"
	Drom   Platform = "drom"
	AutoRu Platform = "autoru"
)

var Platforms = []Platform{Avito, Drom, AutoRu}

func ToPlatform(s string) (Platform, error) {
	switch s {
	case string(Avito):
		return Avito, nil
	case string(Drom):
		return Drom, nil
	case string(AutoRu):
		return AutoRu, nil
	default:
		return "", fmt.Errorf("invalid platform: %v", s)
	}
}

func (p Platform) IsKnown() bool {
	return slices.Contains(Platforms, p)
}

// Params is the scraping query of a search. Two searches of one user on one
// platform with equal params are the same search.
type Params map[string]any

// Key returns a canonical encoding of the params. Map keys are sorted by the
// encoder, and numbers decoded from storage compare equal to ints.
func (p Params) Key() string {
	if len(p) == 0 {
		return "{}"
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(p))
	}
	return string(data)
}

func (p Params) Equal(other Params) bool {
	return p.Key() == other.Key()
}

// Text returns the first present key as a display string.
func (p Params) Text(keys ...string) string {
	for _, key := range keys {
		value, ok := p[key]
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}

var errEmptyTimestamp = errors.New("empty timestamp")

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp is kept as text so that a single broken value does not make the
// whole stored document unreadable.
type Timestamp string

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UTC().Format(time.RFC3339Nano))
}

func (t Timestamp) Time() (time.Time, error) {
	if t == "" {
		return time.Time{}, errEmptyTimestamp
	}
	var err error
	for _, layout := range timestampLayouts {
		var parsed time.Time
		if parsed, err = time.Parse(layout, string(t)); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", string(t), err)
}

type Search struct {
	ID            string              `json:"id" validate:"required"`
	Platform      Platform            `json:"platform,omitempty"`
	Params        Params              `json:"params" validate:"required"`
	Notifications bool                `json:"notifications"`
	CreatedAt     Timestamp           `json:"created_at"`
	UpdatedAt     Timestamp           `json:"updated_at"`
	LastCheck     Timestamp           `json:"last_check"`
	ResultIDs     []string            `json:"last_result_ids"`
	Results       map[string]AdRecord `json:"last_results"`
}

// SetResults replaces the cached results with the first limit distinct ads.
func (s *Search) SetResults(ads []AdRecord, limit int) {
	s.Results = make(map[string]AdRecord, min(len(ads), limit))
	s.ResultIDs = make([]string, 0, min(len(ads), limit))

	for _, ad := range ads {
		if len(s.ResultIDs) >= limit {
			break
		}
		if _, exists := s.Results[ad.ID]; exists {
			continue
		}
		s.Results[ad.ID] = ad
		s.ResultIDs = append(s.ResultIDs, ad.ID)
	}
}

// OrderedResults flattens the results in scrape order. Entries missing from
// the ids list (imported data) follow in key order.
func (s *Search) OrderedResults() []AdRecord {
	ads := make([]AdRecord, 0, len(s.Results))
	seen := make(map[string]struct{}, len(s.Results))

	appendAd := func(id string) {
		ad, ok := s.Results[id]
		if !ok {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ad.ID = id
		ads = append(ads, ad)
	}

	for _, id := range s.ResultIDs {
		appendAd(id)
	}
	rest := slices.Sorted(maps.Keys(s.Results))
	for _, id := range rest {
		appendAd(id)
	}
	return ads
}

func (s *Search) HasResult(id string) bool {
	_, ok := s.Results[id]
	return ok
}

// LastActivity falls back to the creation time for records without updated_at.
func (s *Search) LastActivity() (time.Time, error) {
	if s.UpdatedAt != "" {
		return s.UpdatedAt.Time()
	}
	return s.CreatedAt.Time()
}

func (s *Search) Clone() *Search {
	clone := *s
	clone.Params = maps.Clone(s.Params)
	clone.ResultIDs = slices.Clone(s.ResultIDs)
	clone.Results = maps.Clone(s.Results)
	return &clone
}
