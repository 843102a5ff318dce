package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

type AuthResponse struct {
	User         *User  `json:"user"`
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type SubscriptionPlan struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	DurationDays int             `json:"duration_days"`
	Features     []string        `json:"features"`
}

var SubscriptionPlans = []SubscriptionPlan{
	{
		ID:           "gold_pass",
		Name:         "Gold Pass",
		Price:        decimal.NewFromInt(49),
		DurationDays: 30,
		Features:     []string{"No ads", "Bonus 100 coins", "Fast matchmaking"},
	},
	{
		ID:           "elite_pass",
		Name:         "Elite Pass",
		Price:        decimal.NewFromInt(149),
		DurationDays: 30,
		Features:     []string{"Premium contests", "Extra rewards", "Special badge", "No ads", "Fast matchmaking"},
	},
}

func FindSubscriptionPlan(id string) (SubscriptionPlan, bool) {
	for _, p := range SubscriptionPlans {
		if p.ID == id {
			return p, true
		}
	}
	return SubscriptionPlan{}, false
}

type Subscription struct {
	UserID    int64     `json:"user_id"`
	PlanID    string    `json:"plan_id"`
	ExpiresAt time.Time `json:"expires_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Subscription) Active(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

type PurchaseSubscriptionRequest struct {
	PlanID string `json:"plan_id"`
}

type PurchaseSubscriptionResponse struct {
	OrderID       string           `json:"order_id"`
	Amount        decimal.Decimal  `json:"amount"`
	Currency      string           `json:"currency"`
	TransactionID string           `json:"transaction_id"`
	Plan          SubscriptionPlan `json:"plan"`
}
