package events

import (
	"github.com/maxaizer/car-tracker/internal/domain/models"
)

var AdsFoundTopic = "AdsFoundEvent"

var SearchDeletedTopic = "SearchDeletedEvent"

type AdsFound struct {
	UserID int64
	Search models.Search
	Ads    []models.AdRecord
}

type SearchDeleted struct {
	UserID   int64
	SearchID string
}
