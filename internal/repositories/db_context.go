package repositories

import (
	"fmt"
	"github.com/glebarez/sqlite"
	"github.com/maxaizer/car-tracker/internal/domain/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"strings"
)

// WAL lets snapshot reads run while the writer holds the row
const sqlitePragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

type DbContext struct {
	DB *gorm.DB
}

func NewDbContext(connectionString string) (*DbContext, error) {
	if !strings.Contains(connectionString, "_pragma=") {
		separator := "?"
		if strings.Contains(connectionString, "?") {
			separator = "&"
		}
		connectionString += separator + sqlitePragmas
	}

	db, err := gorm.Open(sqlite.Open(connectionString), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, err
	}

	return &DbContext{DB: db}, nil
}

func (c *DbContext) Migrate() error {
	if err := c.DB.AutoMigrate(models.ArbitraryData{}); err != nil {
		return fmt.Errorf("failed to migrate ArbitraryData entity: %w", err)
	}
	return nil
}

func (c *DbContext) Close() error {
	db, err := c.DB.DB()
	if err != nil {
		return err
	}

	return db.Close()
}
