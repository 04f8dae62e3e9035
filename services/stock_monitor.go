package services

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-core/kds"
	"github.com/yeremiapane/restaurant-core/utils"
)

// StockMonitor periodically sweeps ingredient levels and pushes anything at or below
// its reorder threshold to staff screens.
type StockMonitor struct {
	ledger   *InventoryLedger
	schedule string
	cron     *cron.Cron
	notify   func(levels []StockLevel)
}

func NewStockMonitor(db *gorm.DB, schedule string) *StockMonitor {
	if schedule == "" {
		schedule = "@every 5m"
	}
	return &StockMonitor{
		ledger:   NewInventoryLedger(db),
		schedule: schedule,
		notify: func(levels []StockLevel) {
			kds.BroadcastStockAlert(levels)
		},
	}
}

// OnAlert replaces the default kds broadcast.
func (m *StockMonitor) OnAlert(fn func(levels []StockLevel)) {
	m.notify = fn
}

func (m *StockMonitor) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(m.schedule, func() {
		if _, err := m.Sweep(context.Background()); err != nil {
			utils.ErrorLogger.Errorf("Stock sweep failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule stock sweep %q: %w", m.schedule, err)
	}
	c.Start()
	m.cron = c
	utils.InfoLogger.WithField("schedule", m.schedule).Info("Stock monitor started")
	return nil
}

// Stop waits for a running sweep to finish.
func (m *StockMonitor) Stop() {
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
	m.cron = nil
}

// Sweep returns every ingredient that is not ok and notifies when there are any.
func (m *StockMonitor) Sweep(ctx context.Context) ([]StockLevel, error) {
	levels, err := m.ledger.StockLevels(ctx, true)
	if err != nil {
		return nil, err
	}
	if len(levels) == 0 {
		return levels, nil
	}

	for _, lv := range levels {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"ingredient_id": lv.ID,
			"ingredient":    lv.Name,
			"on_hand":       lv.OnHand.String(),
			"reorder_at":    lv.ReorderThreshold.String(),
			"severity":      lv.Severity,
		}).Warn("Low stock")
	}
	if m.notify != nil {
		m.notify(levels)
	}
	return levels, nil
}
