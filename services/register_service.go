package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/restaurant-core/models"
	"github.com/yeremiapane/restaurant-core/utils"
)

// RegisterService manages cash-drawer sessions. At most one session per terminal is
// open at a time, enforced by the unique index on open_terminal.
type RegisterService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewRegisterService(db *gorm.DB, audit *AuditService) *RegisterService {
	return &RegisterService{db: db, audit: audit}
}

func (s *RegisterService) Open(ctx context.Context, terminal int, openedBy uint, requestID string) (*models.RegisterSession, error) {
	if terminal <= 0 {
		return nil, newValidationError("terminal_number", "must be a positive number")
	}

	var session models.RegisterSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.RegisterSession{}).
			Where("open_terminal = ?", terminal).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyOpen
		}

		open := terminal
		session = models.RegisterSession{
			TerminalNumber: terminal,
			OpenTerminal:   &open,
			Status:         models.RegisterStatusOpen,
			OpenedBy:       openedBy,
			OpenedAt:       time.Now(),
		}
		if err := tx.Create(&session).Error; err != nil {
			return err
		}

		return s.audit.Record(tx, AuditRecord{
			EntityType: EntityRegisterSession,
			EntityID:   session.ID,
			Action:     "register.opened",
			ActorID:    openedBy,
			RequestID:  requestID,
			After:      session,
		})
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyOpen) {
			return nil, err
		}
		// A racing open that lost on the unique index looks like an insert failure.
		if cur, cerr := s.Current(ctx, terminal); cerr == nil && cur != nil {
			return nil, ErrAlreadyOpen
		}
		return nil, fmt.Errorf("open register on terminal %d: %w", terminal, err)
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"session_id": session.ID,
		"terminal":   terminal,
		"opened_by":  openedBy,
	}).Info("Register session opened")
	return &session, nil
}

func (s *RegisterService) Close(ctx context.Context, sessionID, closedBy uint, requestID string) (*models.RegisterSession, error) {
	var session models.RegisterSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&session, sessionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !session.IsOpen() {
			return ErrNotOpen
		}

		before := session
		now := time.Now()
		session.Status = models.RegisterStatusClosed
		session.OpenTerminal = nil
		session.ClosedBy = &closedBy
		session.ClosedAt = &now

		res := tx.Model(&models.RegisterSession{}).
			Where("id = ? AND status = ?", session.ID, models.RegisterStatusOpen).
			Updates(map[string]interface{}{
				"status":        session.Status,
				"open_terminal": nil,
				"closed_by":     closedBy,
				"closed_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotOpen
		}

		return s.audit.Record(tx, AuditRecord{
			EntityType: EntityRegisterSession,
			EntityID:   session.ID,
			Action:     "register.closed",
			ActorID:    closedBy,
			RequestID:  requestID,
			Before:     before,
			After:      session,
		})
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"session_id": session.ID,
		"terminal":   session.TerminalNumber,
		"closed_by":  closedBy,
	}).Info("Register session closed")
	return &session, nil
}

// Current returns the open session on terminal, or nil when there is none.
func (s *RegisterService) Current(ctx context.Context, terminal int) (*models.RegisterSession, error) {
	var session models.RegisterSession
	err := s.db.WithContext(ctx).Where("open_terminal = ?", terminal).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

type SessionSummary struct {
	Session          models.RegisterSession     `json:"session"`
	OrderCount       int64                      `json:"order_count"`
	VoidCount        int64                      `json:"void_count"`
	GrossSales       decimal.Decimal            `json:"gross_sales"`
	Tips             decimal.Decimal            `json:"tips"`
	PaymentsByMethod map[string]decimal.Decimal `json:"payments_by_method"`
}

// Summary settles one shift: counts, takings and tips of every non-void order in it.
func (s *RegisterService) Summary(ctx context.Context, sessionID uint) (*SessionSummary, error) {
	db := s.db.WithContext(ctx)

	var session models.RegisterSession
	err := db.First(&session, sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var orders []models.Order
	if err := db.Where("register_session_id = ?", sessionID).Find(&orders).Error; err != nil {
		return nil, err
	}

	summary := &SessionSummary{
		Session:          session,
		GrossSales:       decimal.Zero,
		Tips:             decimal.Zero,
		PaymentsByMethod: make(map[string]decimal.Decimal),
	}
	live := make([]uint, 0, len(orders))
	for _, o := range orders {
		if o.Voided {
			summary.VoidCount++
			continue
		}
		summary.OrderCount++
		summary.GrossSales = summary.GrossSales.Add(o.Subtotal)
		summary.Tips = summary.Tips.Add(o.TipAmount)
		live = append(live, o.ID)
	}

	if len(live) > 0 {
		var payments []models.OrderPayment
		if err := db.Where("order_id IN ?", live).Find(&payments).Error; err != nil {
			return nil, err
		}
		for _, p := range payments {
			key := string(p.Method)
			summary.PaymentsByMethod[key] = summary.PaymentsByMethod[key].Add(p.Amount)
		}
	}
	return summary, nil
}
