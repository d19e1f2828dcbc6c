package model

import (
	"time"

	"github.com/pinnity/pinnity/internal/id"
)

// Deal is a promotion offered by a business.
type Deal struct {
	ID                    id.ID      `db:"id" json:"id"`
	BusinessID            id.ID      `db:"business_id" json:"business_id"`
	Title                 string     `db:"title" json:"title"`
	Description           string     `db:"description" json:"description"`
	Category              string     `db:"category" json:"category"`
	ImageURL              string     `db:"image_url" json:"image_url,omitempty"`
	OriginalPrice         float64    `db:"original_price" json:"original_price"`
	DiscountedPrice       float64    `db:"discounted_price" json:"discounted_price"`
	Terms                 string     `db:"terms" json:"terms,omitempty"`
	StartDate             time.Time  `db:"start_date" json:"start_date"`
	EndDate               time.Time  `db:"end_date" json:"end_date"`
	Status                DealStatus `db:"status" json:"status"`
	MaxRedemptionsPerUser int        `db:"max_redemptions_per_user" json:"max_redemptions_per_user"`
	TotalRedemptionsLimit int        `db:"total_redemptions_limit" json:"total_redemptions_limit"`
	RedemptionCode        string     `db:"redemption_code" json:"-"`
	ViewCount             int        `db:"view_count" json:"view_count"`
	SaveCount             int        `db:"save_count" json:"save_count"`
	RedemptionCount       int        `db:"redemption_count" json:"redemption_count"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// EffectiveStatus is the single authority on whether a deal is expired.
// A deal whose end date lies before now reads as expired unless it was
// rejected; otherwise the stored status is returned.
func (d *Deal) EffectiveStatus(now time.Time) DealStatus {
	if d.Status != DealStatusRejected && d.EndDate.Before(now) {
		return DealStatusExpired
	}
	return d.Status
}

// IsExpired is EffectiveStatus(now) == expired.
func (d *Deal) IsExpired(now time.Time) bool {
	return d.EffectiveStatus(now) == DealStatusExpired
}

// IsLive reports whether customers can see and redeem the deal at now,
// ignoring the owning business's verification.
func (d *Deal) IsLive(now time.Time) bool {
	return d.EffectiveStatus(now) == DealStatusApproved && !now.Before(d.StartDate)
}

// SoldOut reports whether the total redemption cap is used up. A zero
// limit means unlimited.
func (d *Deal) SoldOut() bool {
	return d.TotalRedemptionsLimit > 0 && d.RedemptionCount >= d.TotalRedemptionsLimit
}

// DealApproval tracks the moderation cycle of one deal.
type DealApproval struct {
	ID            id.ID      `db:"id" json:"id"`
	DealID        id.ID      `db:"deal_id" json:"deal_id"`
	Status        DealStatus `db:"status" json:"status"`
	Feedback      string     `db:"feedback" json:"feedback,omitempty"`
	RevisionCount int        `db:"revision_count" json:"revision_count"`
	ReviewedBy    id.ID      `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	SubmittedAt   *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Categories are the deal and business categories offered to clients.
var Categories = []string{
	"food_drink",
	"beauty_wellness",
	"fitness",
	"entertainment",
	"retail",
	"services",
	"travel",
	"other",
}

// ValidCategory reports whether c is one of Categories.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}
