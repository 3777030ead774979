package repositories

import (
	"context"
	"github.com/maxaizer/car-tracker/internal/domain/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type Data struct {
	db *gorm.DB
}

func NewDataRepository(db *gorm.DB) *Data {
	return &Data{db: db}
}

func (repo *Data) Save(ctx context.Context, id string, data []byte) error {
	return repo.db.WithContext(ctx).Save(&models.ArbitraryData{
		ID:    id,
		Value: data,
	}).Error
}

func (repo *Data) Load(ctx context.Context, id string) ([]byte, error) {
	data := &models.ArbitraryData{}
	err := repo.db.WithContext(ctx).First(data, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return data.Value, nil
}

// DataBlob stores the whole snapshot as one row of the data table.
type DataBlob struct {
	repo *Data
	key  string
}

func NewDataBlob(repo *Data, key string) *DataBlob {
	return &DataBlob{repo: repo, key: key}
}

func (b *DataBlob) Read(ctx context.Context) ([]byte, error) {
	return b.repo.Load(ctx, b.key)
}

func (b *DataBlob) Write(ctx context.Context, data []byte) error {
	return b.repo.Save(ctx, b.key, data)
}
