package model

import (
	"time"

	"github.com/pinnity/pinnity/internal/id"
)

// Business is a vendor profile. VerificationStatus is never empty.
type Business struct {
	ID                   id.ID              `db:"id" json:"id"`
	UserID               id.ID              `db:"user_id" json:"user_id"`
	BusinessName         string             `db:"business_name" json:"business_name"`
	Category             string             `db:"category" json:"category"`
	Description          string             `db:"description" json:"description"`
	Address              string             `db:"address" json:"address"`
	Phone                string             `db:"phone" json:"phone"`
	Website              string             `db:"website" json:"website"`
	Latitude             *float64           `db:"latitude" json:"latitude,omitempty"`
	Longitude            *float64           `db:"longitude" json:"longitude,omitempty"`
	VerificationStatus   VerificationStatus `db:"verification_status" json:"verification_status"`
	VerificationFeedback string             `db:"verification_feedback" json:"verification_feedback,omitempty"`
	VerifiedAt           *time.Time         `db:"verified_at" json:"verified_at,omitempty"`
	CreatedAt            time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time          `db:"updated_at" json:"updated_at"`
}

// IsVerified reports whether customers may see and redeem the business's deals.
func (b *Business) IsVerified() bool {
	return b.VerificationStatus == VerificationApproved
}
