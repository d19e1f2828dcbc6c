package model

import (
	"time"

	"github.com/pinnity/pinnity/internal/id"
)

// NotificationPreference holds per-user opt-ins.
type NotificationPreference struct {
	ID              id.ID     `db:"id" json:"id"`
	UserID          id.ID     `db:"user_id" json:"user_id"`
	DealUpdates     bool      `db:"deal_updates" json:"deal_updates"`
	BusinessUpdates bool      `db:"business_updates" json:"business_updates"`
	Marketing       bool      `db:"marketing" json:"marketing"`
	EmailEnabled    bool      `db:"email_enabled" json:"email_enabled"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultPreferences returns the opt-ins a new user starts with.
func DefaultPreferences(userID id.ID) NotificationPreference {
	return NotificationPreference{
		ID:              id.NewPreferenceID(),
		UserID:          userID,
		DealUpdates:     true,
		BusinessUpdates: true,
		Marketing:       false,
		EmailEnabled:    true,
	}
}

// NotificationKind names what a notification is about.
type NotificationKind string

const (
	NotifyDealApproved        NotificationKind = "deal_approved"
	NotifyDealRejected        NotificationKind = "deal_rejected"
	NotifyDealRevision        NotificationKind = "deal_revision_requested"
	NotifyBusinessApproved    NotificationKind = "business_approved"
	NotifyBusinessRejected    NotificationKind = "business_rejected"
	NotifyRedemptionCompleted NotificationKind = "redemption_completed"
)

// IsDealUpdate reports whether the kind is gated by DealUpdates.
func (k NotificationKind) IsDealUpdate() bool {
	switch k {
	case NotifyDealApproved, NotifyDealRejected, NotifyDealRevision, NotifyRedemptionCompleted:
		return true
	}
	return false
}

// Notification is an in-app message for one user.
type Notification struct {
	ID         id.ID            `db:"id" json:"id"`
	UserID     id.ID            `db:"user_id" json:"user_id"`
	Kind       NotificationKind `db:"kind" json:"kind"`
	Title      string           `db:"title" json:"title"`
	Body       string           `db:"body" json:"body"`
	ResourceID string           `db:"resource_id" json:"resource_id,omitempty"`
	ReadAt     *time.Time       `db:"read_at" json:"read_at,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}
