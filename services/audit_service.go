package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-core/models"
)

// Entity types written to the audit log
const (
	EntityOrder           = "order"
	EntityRegisterSession = "register_session"
	EntityStockIngredient = "stock_ingredient"
)

type AuditRecord struct {
	EntityType string
	EntityID   uint
	Action     string
	ActorID    uint
	RequestID  string
	Message    string
	Before     interface{}
	After      interface{}
}

// AuditService appends to and reads the audit log. Entries are never updated.
type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record writes an entry using tx, so it commits or rolls back with the change it describes.
func (s *AuditService) Record(tx *gorm.DB, rec AuditRecord) error {
	if tx == nil {
		tx = s.db
	}
	before, err := toJSON(rec.Before)
	if err != nil {
		return fmt.Errorf("audit before: %w", err)
	}
	after, err := toJSON(rec.After)
	if err != nil {
		return fmt.Errorf("audit after: %w", err)
	}

	entry := models.AuditEntry{
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		Action:     rec.Action,
		ActorID:    rec.ActorID,
		RequestID:  rec.RequestID,
		Message:    rec.Message,
		Before:     before,
		After:      after,
		CreatedAt:  time.Now(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

func toJSON(v interface{}) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

type AuditFilter struct {
	EntityType string
	EntityID   uint
	Action     string
	Start      *time.Time
	End        *time.Time
	Page       int
	PageSize   int
}

type AuditPage struct {
	Entries  []models.AuditEntry `json:"entries"`
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

// List returns entries newest first.
func (s *AuditService) List(ctx context.Context, f AuditFilter) (*AuditPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 200 {
		f.PageSize = 50
	}

	q := s.db.WithContext(ctx).Model(&models.AuditEntry{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.Start != nil {
		q = q.Where("created_at >= ?", *f.Start)
	}
	if f.End != nil {
		q = q.Where("created_at < ?", *f.End)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	var entries []models.AuditEntry
	err := q.Order("created_at desc").Order("id desc").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	return &AuditPage{Entries: entries, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}
