// Package orders persists checkout orders. The order log is the durable
// record behind checkout: the cart is only cleared once its order row is
// written and handed off.
package orders

import (
	"fmt"
	"time"

	"github.com/msaseller/storefront/internal/catalog"
	"github.com/msaseller/storefront/internal/session"
	"gorm.io/gorm"
)

// Order is one checkout, with its line items.
type Order struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	UserID     string `gorm:"size:64;not null;index"`
	UserName   string `gorm:"size:128"`
	Platform   string `gorm:"size:16"`
	TotalMinor int    `gorm:"not null"`
	Items      []OrderItem
	CreatedAt  time.Time
}

// OrderItem is one cart line captured at checkout time. Fields are copied
// from the product snapshot, never referenced back into the catalog.
type OrderItem struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	OrderID    uint   `gorm:"not null;index"`
	Position   int    `gorm:"not null"`
	Name       string `gorm:"size:256;not null"`
	Color      string `gorm:"size:64"`
	Spec       string `gorm:"size:256"`
	Price      string `gorm:"size:64"`
	PriceMinor int
}

// AutoMigrate creates or updates the order tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Order{}, &OrderItem{}); err != nil {
		return fmt.Errorf("orders: auto-migrate: %w", err)
	}
	return nil
}

// Log writes an order built from a cart snapshot and returns it.
func Log(db *gorm.DB, userID, userName, platform string, cart []catalog.Product) (*Order, error) {
	if userID == "" {
		return nil, fmt.Errorf("orders: user id is required")
	}
	if len(cart) == 0 {
		return nil, fmt.Errorf("orders: cart is empty")
	}

	order := Order{
		UserID:     userID,
		UserName:   userName,
		Platform:   platform,
		TotalMinor: session.CartTotal(cart),
		CreatedAt:  time.Now(),
	}
	for i, p := range cart {
		order.Items = append(order.Items, OrderItem{
			Position:   i + 1,
			Name:       p.Name,
			Color:      p.Color,
			Spec:       p.Spec,
			Price:      p.Price,
			PriceMinor: catalog.PriceMinor(p.Price),
		})
	}

	if err := db.Create(&order).Error; err != nil {
		return nil, fmt.Errorf("orders: log order for %s: %w", userID, err)
	}
	return &order, nil
}

// Recent returns the most recent orders with items, newest first.
func Recent(db *gorm.DB, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []Order
	if err := db.Preload("Items").Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("orders: recent: %w", err)
	}
	return out, nil
}

// Count returns the total number of logged orders.
func Count(db *gorm.DB) (int64, error) {
	var n int64
	if err := db.Model(&Order{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("orders: count: %w", err)
	}
	return n, nil
}
