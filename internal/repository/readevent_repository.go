package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"lpr-pipeline/internal/domain/plate"
	"lpr-pipeline/internal/utils"
)

type ReadEventRepository struct {
	db *gorm.DB
}

func NewReadEventRepository(db *gorm.DB) *ReadEventRepository {
	return &ReadEventRepository{db: db}
}

type ReadEvent struct {
	ID              int64          `gorm:"primaryKey"`
	SessionID       uuid.UUID      `gorm:"not null;uniqueIndex"`
	Plate           string         `gorm:"not null"`
	NormalizedPlate string         `gorm:"not null"`
	Direction       string         `gorm:"not null"`
	FirstText       string         `gorm:"not null"`
	LastText        string         `gorm:"not null"`
	Reads           datatypes.JSON `gorm:"type:jsonb"`
	EventTime       time.Time      `gorm:"not null"`
	CreatedAt       time.Time
}

func (r *ReadEventRepository) CreateReadEvent(ctx context.Context, ev *plate.ReadEvent) error {
	reads, err := json.Marshal(ev.Reads)
	if err != nil {
		return err
	}

	row := ReadEvent{
		SessionID:       ev.ID,
		Plate:           ev.Plate,
		NormalizedPlate: utils.NormalizePlate(ev.Plate),
		Direction:       ev.Direction,
		FirstText:       ev.FirstText,
		LastText:        ev.LastText,
		Reads:           datatypes.JSON(reads),
		EventTime:       ev.At,
		CreatedAt:       time.Now(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *ReadEventRepository) FindReadEvents(ctx context.Context, normalizedPlate *string, from, to *time.Time, limit, offset int) ([]ReadEvent, error) {
	query := r.db.WithContext(ctx).Model(&ReadEvent{})

	if normalizedPlate != nil {
		query = query.Where("normalized_plate = ?", *normalizedPlate)
	}
	if from != nil {
		query = query.Where("event_time >= ?", *from)
	}
	if to != nil {
		query = query.Where("event_time <= ?", *to)
	}

	query = query.Order("event_time DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var events []ReadEvent
	err := query.Find(&events).Error
	return events, err
}

func (r *ReadEventRepository) GetLastReadTimeForPlate(ctx context.Context, normalizedPlate string) (*time.Time, error) {
	var event ReadEvent
	err := r.db.WithContext(ctx).
		Where("normalized_plate = ?", normalizedPlate).
		Order("event_time DESC").
		First(&event).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &event.EventTime, nil
}

func (r *ReadEventRepository) DeleteOldEvents(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	res := r.db.WithContext(ctx).
		Where("event_time < ?", cutoff).
		Delete(&ReadEvent{})
	return res.RowsAffected, res.Error
}
