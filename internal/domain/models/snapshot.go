package models

import (
	"maps"
	"slices"
	"time"
)

type UserSearches map[Platform][]*Search

func (u UserSearches) Count() int {
	total := 0
	for _, searches := range u {
		total += len(searches)
	}
	return total
}

func (u UserSearches) Find(searchID string) (*Search, Platform, bool) {
	for platform, searches := range u {
		for _, search := range searches {
			if search.ID == searchID {
				return search, platform, true
			}
		}
	}
	return nil, "", false
}

func (u UserSearches) FindByParams(platform Platform, params Params) *Search {
	key := params.Key()
	for _, search := range u[platform] {
		if search.Params.Key() == key {
			return search
		}
	}
	return nil
}

// Remove drops the search and any platform bucket it leaves empty.
func (u UserSearches) Remove(searchID string) (*Search, bool) {
	for platform, searches := range u {
		i := slices.IndexFunc(searches, func(s *Search) bool { return s.ID == searchID })
		if i < 0 {
			continue
		}
		removed := searches[i]
		searches = slices.Delete(searches, i, i+1)
		if len(searches) == 0 {
			delete(u, platform)
		} else {
			u[platform] = searches
		}
		return removed, true
	}
	return nil, false
}

// SortedPlatforms gives a stable iteration order over the buckets.
func (u UserSearches) SortedPlatforms() []Platform {
	return slices.Sorted(maps.Keys(u))
}

func (u UserSearches) Clone() UserSearches {
	clone := make(UserSearches, len(u))
	for platform, searches := range u {
		copied := make([]*Search, len(searches))
		for i, search := range searches {
			copied[i] = search.Clone()
		}
		clone[platform] = copied
	}
	return clone
}

// Snapshot is the whole persisted state: user id to platform to searches.
type Snapshot map[int64]UserSearches

func (s Snapshot) Clone() Snapshot {
	clone := make(Snapshot, len(s))
	for userID, searches := range s {
		clone[userID] = searches.Clone()
	}
	return clone
}

func (s Snapshot) Count() int {
	total := 0
	for _, searches := range s {
		total += searches.Count()
	}
	return total
}

func (s Snapshot) SortedUsers() []int64 {
	return slices.Sorted(maps.Keys(s))
}

// ArbitraryData is a keyed blob row.
type ArbitraryData struct {
	ID        string `gorm:"primaryKey"`
	Value     []byte
	UpdatedAt time.Time
}
