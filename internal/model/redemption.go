package model

import (
	"time"

	"github.com/pinnity/pinnity/internal/id"
)

// Redemption records a customer claiming a deal.
type Redemption struct {
	ID          id.ID            `db:"id" json:"id"`
	UserID      id.ID            `db:"user_id" json:"user_id"`
	DealID      id.ID            `db:"deal_id" json:"deal_id"`
	Status      RedemptionStatus `db:"status" json:"status"`
	RedeemedAt  time.Time        `db:"redeemed_at" json:"redeemed_at"`
	CompletedAt *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt *time.Time       `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// Rating is a customer's 1..5 score for one redemption.
type Rating struct {
	ID           id.ID     `db:"id" json:"id"`
	RedemptionID id.ID     `db:"redemption_id" json:"redemption_id"`
	UserID       id.ID     `db:"user_id" json:"user_id,omitempty"`
	DealID       id.ID     `db:"deal_id" json:"deal_id"`
	Rating       int       `db:"rating" json:"rating"`
	Comment      string    `db:"comment" json:"comment,omitempty"`
	Anonymous    bool      `db:"anonymous" json:"anonymous"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

const (
	MinRating = 1
	MaxRating = 5
)

// Favorite is a saved deal. (user_id, deal_id) is unique.
type Favorite struct {
	ID        id.ID     `db:"id" json:"id"`
	UserID    id.ID     `db:"user_id" json:"user_id"`
	DealID    id.ID     `db:"deal_id" json:"deal_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
