package model

import "strings"

// DealStatus is the moderation/lifecycle status of a deal.
type DealStatus string

const (
	DealStatusDraft           DealStatus = "draft"
	DealStatusPending         DealStatus = "pending"
	DealStatusPendingRevision DealStatus = "pending_revision"
	DealStatusApproved        DealStatus = "approved"
	DealStatusRejected        DealStatus = "rejected"
	DealStatusExpired         DealStatus = "expired"
)

// legacy synonym written by older clients; never persisted
const statusVerified = "verified"

// ParseDealStatus normalizes s, mapping "verified" to approved.
// ok is false for unknown values.
func ParseDealStatus(s string) (DealStatus, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == statusVerified {
		return DealStatusApproved, true
	}
	st := DealStatus(v)
	switch st {
	case DealStatusDraft, DealStatusPending, DealStatusPendingRevision,
		DealStatusApproved, DealStatusRejected, DealStatusExpired:
		return st, true
	}
	return "", false
}

// dealTransitions lists every allowed stored-status move.
var dealTransitions = map[DealStatus][]DealStatus{
	DealStatusDraft:           {DealStatusPending},
	DealStatusPending:         {DealStatusApproved, DealStatusRejected, DealStatusPendingRevision},
	DealStatusPendingRevision: {DealStatusPending},
	DealStatusApproved:        {DealStatusExpired},
}

// CanTransition reports whether a deal may move from s to next.
func (s DealStatus) CanTransition(next DealStatus) bool {
	for _, allowed := range dealTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Editable reports whether the vendor may change deal content in this status.
func (s DealStatus) Editable() bool {
	switch s {
	case DealStatusDraft, DealStatusPendingRevision:
		return true
	}
	return false
}

// VerificationStatus is the admin-controlled trust flag on a business.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// ParseVerificationStatus normalizes s, mapping "verified" to approved.
func ParseVerificationStatus(s string) (VerificationStatus, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == statusVerified {
		return VerificationApproved, true
	}
	st := VerificationStatus(v)
	switch st {
	case VerificationPending, VerificationApproved, VerificationRejected:
		return st, true
	}
	return "", false
}

var verificationTransitions = map[VerificationStatus][]VerificationStatus{
	VerificationPending:  {VerificationApproved, VerificationRejected},
	VerificationApproved: {VerificationRejected},
	VerificationRejected: {VerificationApproved, VerificationPending},
}

// CanTransition reports whether a business may move from s to next.
func (s VerificationStatus) CanTransition(next VerificationStatus) bool {
	for _, allowed := range verificationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RedemptionStatus is the state of a single redemption.
type RedemptionStatus string

const (
	RedemptionRedeemed  RedemptionStatus = "redeemed"
	RedemptionCompleted RedemptionStatus = "completed"
	RedemptionCancelled RedemptionStatus = "cancelled"
)

// Rateable reports whether a rating may be left for a redemption in this state.
func (s RedemptionStatus) Rateable() bool {
	return s == RedemptionRedeemed || s == RedemptionCompleted
}

// UserType decides which API surfaces a user may reach.
type UserType string

const (
	UserIndividual UserType = "individual"
	UserBusiness   UserType = "business"
	UserAdmin      UserType = "admin"
)

// ParseUserType validates s.
func ParseUserType(s string) (UserType, bool) {
	t := UserType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case UserIndividual, UserBusiness, UserAdmin:
		return t, true
	}
	return "", false
}
