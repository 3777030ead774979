package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"github.com/jszwec/csvutil"
	"github.com/maxaizer/car-tracker/internal/domain/models"
	"github.com/pkg/errors"
	"io"
)

var ErrInvalidImportFile = errors.New("invalid searches file")

type searchesSource interface {
	ListSearches(ctx context.Context, userID int64) (models.UserSearches, error)
	GetSearch(ctx context.Context, userID int64, searchID string) (*models.Search, error)
}

type searchesImporter interface {
	ImportSearches(ctx context.Context, userID int64, data models.UserSearches) (int, error)
}

type searchRow struct {
	ID            string          `csv:"id"`
	Platform      models.Platform `csv:"platform"`
	Brand         string          `csv:"brand"`
	Region        string          `csv:"region"`
	MinPrice      string          `csv:"min_price"`
	MaxPrice      string          `csv:"max_price"`
	Notifications bool            `csv:"notifications"`
	Results       int             `csv:"results"`
	UpdatedAt     string          `csv:"updated_at"`
}

type resultRow struct {
	models.AdRecord
	PriceValue float64 `csv:"price_num"`
}

// Exporter serializes a user's searches for download and reads them back.
type Exporter struct {
	searches searchesSource
	importer searchesImporter
}

func NewExporter(searches searchesSource, importer searchesImporter) *Exporter {
	return &Exporter{searches: searches, importer: importer}
}

// ExportJSON writes the searches in the stored layout: platform to searches.
func (e *Exporter) ExportJSON(ctx context.Context, userID int64, w io.Writer) error {
	userSearches, err := e.searches.ListSearches(ctx, userID)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "    ")
	return encoder.Encode(userSearches)
}

func (e *Exporter) ExportSearchesCSV(ctx context.Context, userID int64, w io.Writer) error {
	userSearches, err := e.searches.ListSearches(ctx, userID)
	if err != nil {
		return err
	}

	var rows []searchRow
	for _, platform := range userSearches.SortedPlatforms() {
		for _, search := range userSearches[platform] {
			rows = append(rows, searchRow{
				ID:            search.ID,
				Platform:      platform,
				Brand:         search.Params.Text("brand"),
				Region:        search.Params.Text("region", "city"),
				MinPrice:      search.Params.Text("min_price", "price_from"),
				MaxPrice:      search.Params.Text("max_price", "price_to"),
				Notifications: search.Notifications,
				Results:       len(search.Results),
				UpdatedAt:     string(search.UpdatedAt),
			})
		}
	}

	return writeCSV(w, rows, searchRow{})
}

// ExportResultsCSV returns false when the search does not exist.
func (e *Exporter) ExportResultsCSV(ctx context.Context, userID int64, searchID string, w io.Writer) (bool, error) {
	search, err := e.searches.GetSearch(ctx, userID, searchID)
	if err != nil || search == nil {
		return false, err
	}

	var rows []resultRow
	for _, ad := range search.OrderedResults() {
		rows = append(rows, resultRow{AdRecord: ad, PriceValue: ad.PriceValue()})
	}

	return true, writeCSV(w, rows, resultRow{})
}

func writeCSV[T any](w io.Writer, rows []T, header T) error {
	writer := csv.NewWriter(w)
	encoder := csvutil.NewEncoder(writer)

	if len(rows) == 0 {
		if err := encoder.EncodeHeader(header); err != nil {
			return fmt.Errorf("failed to encode CSV header: %w", err)
		}
	} else if err := encoder.Encode(rows); err != nil {
		return fmt.Errorf("failed to encode CSV rows: %w", err)
	}

	writer.Flush()
	return writer.Error()
}

// ImportJSON reads searches in the layout written by ExportJSON.
func (e *Exporter) ImportJSON(ctx context.Context, userID int64, r io.Reader) (int, error) {
	var data models.UserSearches
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidImportFile, err)
	}
	return e.importer.ImportSearches(ctx, userID, data)
}
