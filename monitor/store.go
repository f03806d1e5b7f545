// Package monitor reconciles the actual consumption, the official day-ahead
// estimate, and the model prediction into a monitoring store and computes
// comparative accuracy metrics.
package monitor

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrInsufficientData = errors.New("no fully populated monitoring rows")
	ErrUnknownDriver    = errors.New("unknown database driver")
)

// Record is one hour of the monitoring table. The three value columns are
// nullable because the sources arrive independently; a populated field is
// never overwritten by an absent one and records are never deleted.
type Record struct {
	Date              time.Time `gorm:"column:date;primaryKey"`
	ActualConsumption *float64  `gorm:"column:actual_consumption"`
	OfficialForecast  *float64  `gorm:"column:official_forecast"`
	ModelPrediction   *float64  `gorm:"column:model_prediction"`
}

func (Record) TableName() string {
	return "daily_monitoring"
}

// Complete reports whether all three value fields are populated.
func (r Record) Complete() bool {
	return r.ActualConsumption != nil && r.OfficialForecast != nil && r.ModelPrediction != nil
}

// Store persists monitoring records.
type Store struct {
	db *gorm.DB
}

// Open connects to the monitoring database, migrating the table if needed.
// Supported drivers are "sqlite" and "postgres".
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("driver %q, %w", driver, ErrUnknownDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open monitoring database, %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("unable to migrate monitoring table, %w", err)
	}
	return &Store{db: db}, nil
}

// Upsert inserts the record if its timestamp is new, otherwise updates in
// place only the fields populated on the incoming record. The
// read-modify-write runs in a single transaction so overlapping reconcile
// runs cannot lose updates on the same hour.
func (s *Store) Upsert(rec Record) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var existing Record
		err := tx.Where("date = ?", rec.Date).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&rec).Error
		}
		if err != nil {
			return err
		}

		updates := make(map[string]any)
		if rec.ActualConsumption != nil {
			updates["actual_consumption"] = *rec.ActualConsumption
		}
		if rec.OfficialForecast != nil {
			updates["official_forecast"] = *rec.OfficialForecast
		}
		if rec.ModelPrediction != nil {
			updates["model_prediction"] = *rec.ModelPrediction
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&Record{}).Where("date = ?", rec.Date).Updates(updates).Error
	})
}

// Range returns the records with timestamps in [start, end] ordered by
// timestamp ascending.
func (s *Store) Range(start, end time.Time) ([]Record, error) {
	var records []Record
	err := s.db.
		Where("date >= ? AND date <= ?", start, end).
		Order("date").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// FullyPopulated returns the records for the calendar day starting at day
// (midnight) where all three value fields are present, ordered by timestamp.
func (s *Store) FullyPopulated(day time.Time) ([]Record, error) {
	var records []Record
	err := s.db.
		Where("date >= ? AND date < ?", day, day.AddDate(0, 0, 1)).
		Where("actual_consumption IS NOT NULL").
		Where("official_forecast IS NOT NULL").
		Where("model_prediction IS NOT NULL").
		Order("date").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// All returns every record ordered by timestamp ascending.
func (s *Store) All() ([]Record, error) {
	var records []Record
	if err := s.db.Order("date").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
