// Package model содержит доменные сущности каталога наград и журнала покупок.
package model

import "time"

// Category представляет категорию наград.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`

	// ProductCount заполняется только при выводе списка категорий.
	ProductCount int64 `json:"product_count"`
}

// Product описывает награду каталога. CategoryName хранит копию названия
// категории на момент создания или последнего редактирования.
type Product struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CategoryName string    `json:"category_name"`
	Price        int64     `json:"price"`
	Image        string    `json:"image"`
	CreatedAt    time.Time `json:"created_at"`
}

// PurchaseStatus описывает статус покупки награды.
type PurchaseStatus string

const (
	PurchaseStatusPending  PurchaseStatus = "pending"
	PurchaseStatusApproved PurchaseStatus = "approved"
	PurchaseStatusRejected PurchaseStatus = "rejected"
)

// Valid сообщает, является ли значение одним из известных статусов.
func (s PurchaseStatus) Valid() bool {
	switch s {
	case PurchaseStatusPending, PurchaseStatusApproved, PurchaseStatusRejected:
		return true
	}
	return false
}

// Terminal сообщает, что из статуса больше нет переходов.
func (s PurchaseStatus) Terminal() bool {
	return s == PurchaseStatusApproved || s == PurchaseStatusRejected
}

// Purchase описывает покупку награды пользователем.
type Purchase struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Username     string         `json:"username"`
	RewardName   string         `json:"reward_name"`
	CategoryName string         `json:"category_name"`
	Price        int64          `json:"price"`
	Image        string         `json:"image"`
	Status       PurchaseStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
}

// UserAccount содержит баланс игрока.
type UserAccount struct {
	ID       string
	UserID   string
	Username string
	Amount   int64
}

// RefundMarker фиксирует возврат, который ещё не зачислен на счёт пользователя.
type RefundMarker struct {
	PurchaseID string
	UserID     string
	Username   string
	Amount     int64
	Attempts   int
	LastError  string
	CreatedAt  time.Time
}

// Stats содержит сводку для панели администратора.
type Stats struct {
	Categories       int64 `json:"categories"`
	Products         int64 `json:"products"`
	Purchases        int64 `json:"purchases"`
	PendingPurchases int64 `json:"pending_purchases"`
}
