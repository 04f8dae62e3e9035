package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/restaurant-core/models"
)

// CustomerService keeps the per-contact order history that create and void maintain.
type CustomerService struct {
	db *gorm.DB
}

func NewCustomerService(db *gorm.DB) *CustomerService {
	return &CustomerService{db: db}
}

// GetByContact looks a profile up by phone number or e-mail.
func (s *CustomerService) GetByContact(ctx context.Context, contact string) (*models.CustomerProfile, error) {
	var profile models.CustomerProfile
	err := s.db.WithContext(ctx).Where("contact = ?", NormalizeContact(contact)).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// NormalizeContact trims and lower-cases a phone number or e-mail used as a profile key.
func NormalizeContact(contact string) string {
	return strings.ToLower(strings.TrimSpace(contact))
}

// Upsert finds or creates the profile for contact and counts one more order of total.
func (s *CustomerService) Upsert(tx *gorm.DB, contact, name string, total decimal.Decimal, at time.Time) (*models.CustomerProfile, error) {
	contact = NormalizeContact(contact)
	if contact == "" {
		return nil, newValidationError("customer_contact", "must not be blank")
	}

	seed := models.CustomerProfile{Contact: contact, Name: name, LifetimeTotal: decimal.Zero}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, fmt.Errorf("create customer profile: %w", err)
	}

	var profile models.CustomerProfile
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("contact = ?", contact).
		First(&profile).Error
	if err != nil {
		return nil, fmt.Errorf("load customer profile: %w", err)
	}

	profile.OrderCount++
	profile.LifetimeTotal = profile.LifetimeTotal.Add(total)
	if profile.LastOrderAt == nil || at.After(*profile.LastOrderAt) {
		profile.LastOrderAt = &at
	}
	if name != "" {
		profile.Name = name
	}
	if err := tx.Save(&profile).Error; err != nil {
		return nil, fmt.Errorf("update customer profile: %w", err)
	}
	return &profile, nil
}

// Reverse takes a voided order back out of the profile totals.
func (s *CustomerService) Reverse(tx *gorm.DB, profileID uint, total decimal.Decimal) error {
	var profile models.CustomerProfile
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&profile, profileID).Error
	if err != nil {
		return fmt.Errorf("load customer profile %d: %w", profileID, err)
	}

	if profile.OrderCount > 0 {
		profile.OrderCount--
	}
	profile.LifetimeTotal = profile.LifetimeTotal.Sub(total)
	if profile.LifetimeTotal.IsNegative() {
		profile.LifetimeTotal = decimal.Zero
	}
	return tx.Save(&profile).Error
}
