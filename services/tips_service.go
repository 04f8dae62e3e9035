package services

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-core/models"
)

// TipsService is the read-only tip rollup payroll consumes. Tips belong to the
// employee who opened the register session the order was rung up on.
type TipsService struct {
	db *gorm.DB
}

func NewTipsService(db *gorm.DB) *TipsService {
	return &TipsService{db: db}
}

type tipRow struct {
	OpenedBy  uint
	TipAmount decimal.Decimal
}

type EmployeeTips struct {
	EmployeeID uint            `json:"employee_id"`
	Orders     int             `json:"orders"`
	Tips       decimal.Decimal `json:"tips"`
}

func (s *TipsService) rows(ctx context.Context, start, end time.Time, employeeID *uint) ([]tipRow, error) {
	if !start.Before(end) {
		return nil, newValidationError("period", "start must be before end")
	}

	q := s.db.WithContext(ctx).
		Table("orders").
		Select("register_sessions.opened_by AS opened_by, orders.tip_amount AS tip_amount").
		Joins("JOIN register_sessions ON register_sessions.id = orders.register_session_id").
		Where("orders.status IN ?", models.FulfilledStatuses).
		Where("orders.voided = ?", false).
		Where("orders.created_at >= ? AND orders.created_at < ?", start, end)
	if employeeID != nil {
		q = q.Where("register_sessions.opened_by = ?", *employeeID)
	}

	var rows []tipRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SumTips totals tips on fulfilled, non-void orders created in [start, end).
func (s *TipsService) SumTips(ctx context.Context, start, end time.Time, employeeID *uint) (decimal.Decimal, error) {
	rows, err := s.rows(ctx, start, end, employeeID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.TipAmount)
	}
	return total, nil
}

// TipsByEmployee is SumTips broken down per employee, ordered by employee id.
func (s *TipsService) TipsByEmployee(ctx context.Context, start, end time.Time) ([]EmployeeTips, error) {
	rows, err := s.rows(ctx, start, end, nil)
	if err != nil {
		return nil, err
	}
	acc := make(map[uint]*EmployeeTips)
	for _, r := range rows {
		et, ok := acc[r.OpenedBy]
		if !ok {
			et = &EmployeeTips{EmployeeID: r.OpenedBy, Tips: decimal.Zero}
			acc[r.OpenedBy] = et
		}
		et.Orders++
		et.Tips = et.Tips.Add(r.TipAmount)
	}
	out := make([]EmployeeTips, 0, len(acc))
	for _, et := range acc {
		out = append(out, *et)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}
