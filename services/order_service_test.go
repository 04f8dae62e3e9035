package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-core/config"
	"github.com/yeremiapane/restaurant-core/models"
)

func countRows(t *testing.T, svc *OrderService, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, svc.db.Model(model).Count(&n).Error)
	return n
}

func TestCreateOrderWritesEverything(t *testing.T) {
	db := setupTestDB(t)
	menu := seedPizzaMenu(t, db)
	session := openSession(t, db, 1, 11)
	svc := newTestOrderService(db)

	res, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		RegisterSessionID: session.ID,
		EmployeeID:        11,
		Lines: []OrderLineInput{
			{ItemID: menu.baconPizza.ID, Quantity: 2},
			{ItemID: menu.pizza.ID, Quantity: 1},
		},
		Tip:             dec("5"),
		Payments:        cashFor("51.97"),
		CustomerContact: " 555-0100 ",
		CustomerName:    "Dana",
		RequestID:       "req-1",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	assert.False(t, res.PaymentDefaulted)

	order := res.Order
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
	assert.Equal(t, session.ID, order.RegisterSessionID)
	requireDecEqual(t, "46.97", order.Subtotal)
	requireDecEqual(t, "51.97", order.Total)
	require.Len(t, order.Lines, 2)
	requireDecEqual(t, "16.99", order.Lines[0].UnitPrice)
	requireDecEqual(t, "33.98", order.Lines[0].LineTotal)
	require.NotNil(t, order.CustomerProfileID)

	requireDecEqual(t, "97", onHand(t, db, menu.dough.ID))
	requireDecEqual(t, "97", onHand(t, db, menu.box.ID))
	requireDecEqual(t, "49.8", onHand(t, db, menu.bacon.ID))

	var movements []models.InventoryMovement
	require.NoError(t, db.Where("order_id = ?", order.ID).Find(&movements).Error)
	assert.Len(t, movements, 3)

	var profile models.CustomerProfile
	require.NoError(t, db.First(&profile, *order.CustomerProfileID).Error)
	assert.Equal(t, "555-0100", profile.Contact)
	assert.Equal(t, 1, profile.OrderCount)
	requireDecEqual(t, "51.97", profile.LifetimeTotal)

	var audit models.AuditEntry
	require.NoError(t, db.Where("entity_type = ? AND entity_id = ?", EntityOrder, order.ID).First(&audit).Error)
	assert.Equal(t, "order.created", audit.Action)
	assert.Equal(t, "req-1", audit.RequestID)

	// price snapshot survives a later price change
	require.NoError(t, db.Model(&menu.pizza).Update("price", dec("99")).Error)
	detail, err := svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	requireDecEqual(t, "12.99", detail.Lines[1].UnitPrice)
	require.Len(t, detail.Payments, 1)
}

func TestCreateOrderBlockedByCriticalStock(t *testing.T) {
	db := setupTestDB(t)
	belly := createIngredient(t, db, "Pork Belly", "lb", "3", "4")
	item := createItem(t, db, "Braised Belly", "14")
	addIngredientLine(t, db, item.ID, belly.ID, "0.5", "lb")
	session := openSession(t, db, 1, 11)
	svc := newTestOrderService(db)

	in := CreateOrderInput{
		RegisterSessionID: session.ID,
		EmployeeID:        11,
		Lines:             []OrderLineInput{{ItemID: item.ID, Quantity: 10}},
		Payments:          cashFor("140"),
		CustomerContact:   "555-0101",
	}
	_, err := svc.CreateOrder(context.Background(), in)
	blocked, ok := AsInventoryBlocked(err)
	require.True(t, ok, "expected inventory block, got %v", err)
	require.Len(t, blocked.Warnings, 1)
	w := blocked.Warnings[0]
	assert.Equal(t, SeverityCritical, w.Severity)
	assert.Equal(t, belly.ID, w.IngredientID)
	requireDecEqual(t, "-2", w.NewQty)

	requireDecEqual(t, "3", onHand(t, db, belly.ID))
	assert.Zero(t, countRows(t, svc, &models.Order{}))
	assert.Zero(t, countRows(t, svc, &models.OrderLine{}))
	assert.Zero(t, countRows(t, svc, &models.OrderPayment{}))
	assert.Zero(t, countRows(t, svc, &models.InventoryMovement{}))
	assert.Zero(t, countRows(t, svc, &models.CustomerProfile{}))

	in.Force = true
	res, err := svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, SeverityCritical, res.Warnings[0].Severity)
	requireDecEqual(t, "-2", onHand(t, db, belly.ID))
}

func TestCreateOrderReturnsAdvisoryWarnings(t *testing.T) {
	db := setupTestDB(t)
	milk := createIngredient(t, db, "Milk", "l", "1", "1")
	item := createItem(t, db, "Latte", "4")
	addIngredientLine(t, db, item.ID, milk.ID, "250", "ml")
	session := openSession(t, db, 1, 11)

	res, err := newTestOrderService(db).CreateOrder(context.Background(), CreateOrderInput{
		RegisterSessionID: session.ID,
		Lines:             []OrderLineInput{{ItemID: item.ID, Quantity: 4}},
		Payments:          cashFor("16"),
	})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, SeverityWarning, res.Warnings[0].Severity)
	assert.True(t, onHand(t, db, milk.ID).IsZero())
}

func TestCreateOrderValidation(t *testing.T) {
	db := setupTestDB(t)
	menu := seedPizzaMenu(t, db)
	session := openSession(t, db, 1, 11)
	svc := newTestOrderService(db)
	ctx := context.Background()

	soldOut := createItem(t, db, "Calzone", "11")
	require.NoError(t, db.Model(&soldOut).Update("active", false).Error)

	tests := []struct {
		name string
		in   CreateOrderInput
	}{
		{"no lines", CreateOrderInput{RegisterSessionID: session.ID}},
		{"zero quantity", CreateOrderInput{RegisterSessionID: session.ID, Lines: []OrderLineInput{{ItemID: menu.pizza.ID}}}},
		{"no session", CreateOrderInput{Lines: []OrderLineInput{{ItemID: menu.pizza.ID, Quantity: 1}}}},
		{"unknown session", CreateOrderInput{RegisterSessionID: 999, Lines: []OrderLineInput{{ItemID: menu.pizza.ID, Quantity: 1}}}},
		{"unknown item", CreateOrderInput{RegisterSessionID: session.ID, Lines: []OrderLineInput{{ItemID: 999, Quantity: 1}}}},
		{"86'd item", CreateOrderInput{RegisterSessionID: session.ID, Lines: []OrderLineInput{{ItemID: soldOut.ID, Quantity: 1}}}},
		{"negative tip", CreateOrderInput{RegisterSessionID: session.ID, Lines: []OrderLineInput{{ItemID: menu.pizza.ID, Quantity: 1}}, Tip: dec("-1")}},
		{"payment mismatch", CreateOrderInput{RegisterSessionID: session.ID, Lines: []OrderLineInput{{ItemID: menu.pizza.ID, Quantity: 1}}, Payments: cashFor("10")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(ctx, tt.in)
			assert.True(t, IsValidationError(err), "got %v", err)
		})
	}

	assert.Zero(t, countRows(t, svc, &models.Order{}))
	requireDecEqual(t, "100", onHand(t, db, menu.dough.ID))
}

func TestCreateOrderOnClosedSession(t *testing.T) {
	db := setupTestDB(t)
	menu := seedPizzaMenu(t, db)
	session := openSession(t, db, 1, 11)
	_, err := NewRegisterService(db, NewAuditService(db)).Close(context.Background(), session.ID, 11, "")
	require.NoError(t, err)

	_, err = newTestOrderService(db).CreateOrder(context.Background(), CreateOrderInput{
		RegisterSessionID: session.ID,
		Lines:             []OrderLineInput{{ItemID: menu.pizza.ID, Quantity: 1}},
		Payments:          cashFor("12.99"),
	})
	assert.True(t, errors.Is(err, ErrSessionClosed))
}

func TestCreateOrderPaymentNullSafety(t *testing.T) {
	db := setupTestDB(t)
	menu := seedPizzaMenu(t, db)
	session := openSession(t, db, 1, 11)
	svc := newTestOrderService(db)

	malformed := map[string][]PaymentInput{
		"missing":        nil,
		"nil amount":     {{Method: "card"}},
		"unknown method": {{Amount: decPtr("12.99"), Method: "voucher"}},
		"negative":       {{Amount: decPtr("-1"), Method: "cash"}},
	}
	for name, payments := range malformed {
		t.Run(name, func(t *testing.T) {
			res, err := svc.CreateOrder(context.Background(), CreateOrderInput{
				RegisterSessionID: session.ID,
				Lines:             []OrderLineInput{{ItemID: menu.pizza.ID, Quantity: 1}},
				Tip:               dec("1.01"),
				Payments:          payments,
			})
			require.NoError(t, err)
			assert.True(t, res.PaymentDefaulted)
			require.Len(t, res.Order.Payments, 1)
			assert.Equal(t, models.PaymentMethodCash, res.Order.Payments[0].Method)
			requireDecEqual(t, "14", res.Order.Payments[0].Amount)
		})
	}

	strict := NewOrderService(db, config.EngineConfig{MaxRecipeDepth: 2, MaxRetries: 1, StrictPayments: true})
	_, err := strict.CreateOrder(context.Background(), CreateOrderInput{
		RegisterSessionID: session.ID,
		Lines:             []OrderLineInput{{ItemID: menu.pizza.ID, Quantity: 1}},
	})
	assert.True(t, IsValidationError(err))
}

func TestVoidRestoresInventoryExactly(t *testing.T) {
	db := setupTestDB(t)
	menu := seedPizzaMenu(t, db)
	session := openSession(t, db, 1, 11)
	svc := newTestOrderService(db)
	ctx := context.Background()

	res, err := svc.CreateOrder(ctx, CreateOrderInput{
		RegisterSessionID: session.ID,
		EmployeeID:        11,
		Lines:             []OrderLineInput{{ItemID: menu.baconPizza.ID, Quantity: 3}},
		Payments:          cashFor("50.97"),
		CustomerContact:   "555-0102",
	})
	require.NoError(t, err)
	requireDecEqual(t, "49.7", onHand(t, db, menu.bacon.ID))

	// recipe edits after the sale must not change what a void gives back
	require.NoError(t, db.Model(&models.RecipeLine{}).
		Where("item_id = ? AND ingredient_id = ?", menu.baconPizza.ID, menu.bacon.ID).
		Update("quantity", dec("0.5")).Error)

	_, err = svc.UpdateStatus(ctx, res.Order.ID, models.OrderStatusPreparing, 11, "")
	require.NoError(t, err)

	voided, err := svc.VoidOrder(ctx, res.Order.ID, "customer left", 12, "req-void")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusVoid, voided.Status)
	assert.True(t, voided.Voided)
	assert.Equal(t, "customer left", voided.VoidReason)
	assert.NotNil(t, voided.VoidedAt)

	requireDecEqual(t, "100", onHand(t, db, menu.dough.ID))
	requireDecEqual(t, "100", onHand(t, db, menu.box.ID))
	requireDecEqual(t, "50", onHand(t, db, menu.bacon.ID))

	var profile models.CustomerProfile
	require.NoError(t, db.First(&profile, *res.Order.CustomerProfileID).Error)
	assert.Equal(t, 0, profile.OrderCount)
	assert.True(t, profile.LifetimeTotal.IsZero())

	_, err = svc.VoidOrder(ctx, res.Order.ID, "again", 12, "")
	assert.True(t, errors.Is(err, ErrAlreadyVoided))
	requireDecEqual(t, "50", onHand(t, db, menu.bacon.ID))

	_, err = svc.VoidOrder(ctx, res.Order.ID, "", 12, "")
	assert.True(t, IsValidationError(err))
}

func TestOrderStateMachine(t *testing.T) {
	all := []models.OrderStatus{
		models.OrderStatusConfirmed, models.OrderStatusPreparing, models.OrderStatusReady,
		models.OrderStatusCompleted, models.OrderStatusPickedUp, models.OrderStatusDelivered,
		models.OrderStatusVoid,
	}
	allowed := map[[2]models.OrderStatus]bool{
		{models.OrderStatusConfirmed, models.OrderStatusPreparing}: true,
		{models.OrderStatusPreparing, models.OrderStatusReady}:     true,
		{models.OrderStatusReady, models.OrderStatusCompleted}:     true,
		{models.OrderStatusReady, models.OrderStatusPickedUp}:      true,
		{models.OrderStatusReady, models.OrderStatusDelivered}:     true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]models.OrderStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, IsTerminal(models.OrderStatusReady))
	assert.True(t, IsTerminal(models.OrderStatusPickedUp))
	assert.True(t, IsTerminal(models.OrderStatusVoid))
}

func TestUpdateStatusGuards(t *testing.T) {
	db := setupTestDB(t)
	menu := seedPizzaMenu(t, db)
	session := openSession(t, db, 1, 11)
	svc := newTestOrderService(db)
	ctx := context.Background()

	res, err := svc.CreateOrder(ctx, CreateOrderInput{
		RegisterSessionID: session.ID,
		Lines:             []OrderLineInput{{ItemID: menu.pizza.ID, Quantity: 1}},
		Payments:          cashFor("12.99"),
	})
	require.NoError(t, err)
	id := res.Order.ID

	_, err = svc.UpdateStatus(ctx, id, models.OrderStatusReady, 11, "")
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	_, err = svc.UpdateStatus(ctx, id, models.OrderStatusVoid, 11, "")
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	_, err = svc.UpdateStatus(ctx, id, "lost", 11, "")
	assert.True(t, IsValidationError(err))

	for _, next := range []models.OrderStatus{models.OrderStatusPreparing, models.OrderStatusReady, models.OrderStatusDelivered} {
		order, err := svc.UpdateStatus(ctx, id, next, 11, "")
		require.NoError(t, err)
		assert.Equal(t, next, order.Status)
	}

	_, err = svc.UpdateStatus(ctx, id, models.OrderStatusCompleted, 11, "")
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	_, err = svc.VoidOrder(ctx, id, "too late", 11, "")
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	requireDecEqual(t, "99", onHand(t, db, menu.dough.ID))

	_, err = svc.UpdateStatus(ctx, 9999, models.OrderStatusPreparing, 11, "")
	assert.True(t, errors.Is(err, ErrNotFound))

	var entries int64
	db.Model(&models.AuditEntry{}).Where("entity_type = ? AND action = ?", EntityOrder, "order.status_changed").Count(&entries)
	assert.Equal(t, int64(3), entries)
}

func TestVoidFromEveryNonTerminalState(t *testing.T) {
	steps := [][]models.OrderStatus{
		nil,
		{models.OrderStatusPreparing},
		{models.OrderStatusPreparing, models.OrderStatusReady},
	}
	for _, path := range steps {
		db := setupTestDB(t)
		menu := seedPizzaMenu(t, db)
		session := openSession(t, db, 1, 11)
		svc := newTestOrderService(db)
		ctx := context.Background()

		res, err := svc.CreateOrder(ctx, CreateOrderInput{
			RegisterSessionID: session.ID,
			Lines:             []OrderLineInput{{ItemID: menu.pizza.ID, Quantity: 1}},
			Payments:          cashFor("12.99"),
		})
		require.NoError(t, err)
		for _, next := range path {
			_, err := svc.UpdateStatus(ctx, res.Order.ID, next, 11, "")
			require.NoError(t, err)
		}

		_, err = svc.VoidOrder(ctx, res.Order.ID, "test", 11, "")
		require.NoError(t, err)
		_, err = svc.VoidOrder(ctx, res.Order.ID, "test", 11, "")
		assert.True(t, errors.Is(err, ErrAlreadyVoided))
		_, err = svc.UpdateStatus(ctx, res.Order.ID, models.OrderStatusPreparing, 11, "")
		assert.True(t, errors.Is(err, ErrInvalidTransition))
	}
}

func TestConcurrentOrdersNeverOversell(t *testing.T) {
	db := setupTestDB(t)
	steak := createIngredient(t, db, "Ribeye", "each", "3", "12")
	item := createItem(t, db, "Steak Frites", "29")
	addIngredientLine(t, db, item.ID, steak.ID, "1", "each")
	session := openSession(t, db, 1, 11)
	svc := newTestOrderService(db)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed int
		blocked   int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
				RegisterSessionID: session.ID,
				Lines:             []OrderLineInput{{ItemID: item.ID, Quantity: 1}},
				Payments:          cashFor("29"),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				committed++
				return
			}
			if _, ok := AsInventoryBlocked(err); ok {
				blocked++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, committed)
	assert.Equal(t, attempts-3, blocked)
	assert.True(t, onHand(t, db, steak.ID).IsZero())
	assert.Equal(t, int64(3), countRows(t, svc, &models.Order{}))
}
