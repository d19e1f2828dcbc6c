package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pinnity/pinnity/internal/audit"
	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/metrics"
	"github.com/pinnity/pinnity/internal/model"
	"github.com/pinnity/pinnity/internal/repository"
)

// ModerationService applies admin decisions to deals and businesses. The
// status change, the approval row and the owner's notification commit in
// one transaction.
type ModerationService struct {
	base
}

func NewModerationService(store repository.Store, opts ...Option) *ModerationService {
	return &ModerationService{base: newBase(store, opts)}
}

// ApproveDeal publishes a pending deal. feedback is optional.
func (s *ModerationService) ApproveDeal(ctx context.Context, adminID, dealID id.ID, feedback string) (*DealView, error) {
	return s.transitionDeal(ctx, adminID, dealID, model.DealStatusApproved, strings.TrimSpace(feedback))
}

// RejectDeal rejects a pending deal for good. reason is required.
func (s *ModerationService) RejectDeal(ctx context.Context, adminID, dealID id.ID, reason string) (*DealView, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("reason", "is required")
	}
	return s.transitionDeal(ctx, adminID, dealID, model.DealStatusRejected, reason)
}

// RequestRevision sends a pending deal back to the vendor with notes.
func (s *ModerationService) RequestRevision(ctx context.Context, adminID, dealID id.ID, notes string) (*DealView, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, invalid("notes", "is required")
	}
	return s.transitionDeal(ctx, adminID, dealID, model.DealStatusPendingRevision, notes)
}

func dealNotice(d *model.Deal, to model.DealStatus, feedback string) notice {
	n := notice{resourceID: d.ID.String()}
	switch to {
	case model.DealStatusApproved:
		n.kind = model.NotifyDealApproved
		n.title = "Deal approved"
		n.body = fmt.Sprintf("%q is now visible to customers.", d.Title)
	case model.DealStatusRejected:
		n.kind = model.NotifyDealRejected
		n.title = "Deal rejected"
		n.body = fmt.Sprintf("%q was rejected: %s", d.Title, feedback)
	default:
		n.kind = model.NotifyDealRevision
		n.title = "Changes requested"
		n.body = fmt.Sprintf("%q needs changes: %s", d.Title, feedback)
	}
	return n
}

func (s *ModerationService) transitionDeal(ctx context.Context, adminID, dealID id.ID, to model.DealStatus, feedback string) (*DealView, error) {
	now := s.now()
	var (
		d        *model.Deal
		a        *model.DealApproval
		from     model.DealStatus
		notified bool
	)
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		d, err = tx.GetDealForUpdate(ctx, dealID)
		if err != nil {
			return mapNotFound(err, ErrDealNotFound)
		}
		from = d.Status
		if !d.Status.CanTransition(to) {
			return transitionError("deal", d.Status, to)
		}
		// An ended deal would read as expired the moment it is approved.
		if to == model.DealStatusApproved && d.EndDate.Before(now) {
			return fmt.Errorf("%w: deal ended at %s", ErrInvalidTransition, d.EndDate.Format(time.RFC3339))
		}
		if err := tx.UpdateDealStatus(ctx, d.ID, to); err != nil {
			return err
		}
		d.Status = to

		a, err = ensureApproval(ctx, tx, d)
		if err != nil {
			return err
		}
		a.Status = to
		a.Feedback = feedback
		a.ReviewedBy = adminID
		a.ReviewedAt = &now
		if err := tx.UpdateApproval(ctx, a); err != nil {
			return err
		}

		b, err := tx.GetBusiness(ctx, d.BusinessID)
		if err != nil {
			return mapNotFound(err, ErrBusinessNotFound)
		}
		notified, err = notify(ctx, tx, b.UserID, dealNotice(d, to, feedback))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "deal moderated",
		"deal_id", d.ID, "from", from, "to", to, "admin_id", adminID, "notified", notified)
	metrics.RecordTransition("deal", string(to))
	s.record(ctx, audit.Event{
		Action:     "deal." + string(to),
		Resource:   audit.ResourceDeal,
		ResourceID: d.ID.String(),
		ActorID:    adminID.String(),
		Reason:     feedback,
		Metadata:   map[string]any{"from": string(from)},
	})

	v := newView(*d, now)
	v.Approval = a
	return &v, nil
}

// VerifyBusiness approves a business. "verified" in older clients means the
// same thing and lands here.
func (s *ModerationService) VerifyBusiness(ctx context.Context, adminID, businessID id.ID, feedback string) (*model.Business, error) {
	return s.transitionBusiness(ctx, adminID, businessID, model.VerificationApproved, strings.TrimSpace(feedback))
}

// RejectBusiness rejects or revokes a business. feedback is required.
func (s *ModerationService) RejectBusiness(ctx context.Context, adminID, businessID id.ID, feedback string) (*model.Business, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, invalid("feedback", "is required")
	}
	return s.transitionBusiness(ctx, adminID, businessID, model.VerificationRejected, feedback)
}

func (s *ModerationService) transitionBusiness(ctx context.Context, adminID, businessID id.ID, to model.VerificationStatus, feedback string) (*model.Business, error) {
	now := s.now()
	var (
		b    *model.Business
		from model.VerificationStatus
	)
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		b, err = tx.GetBusinessForUpdate(ctx, businessID)
		if err != nil {
			return mapNotFound(err, ErrBusinessNotFound)
		}
		from = b.VerificationStatus
		if !b.VerificationStatus.CanTransition(to) {
			return transitionError("business", b.VerificationStatus, to)
		}
		b.VerificationStatus = to
		b.VerificationFeedback = feedback
		if to == model.VerificationApproved {
			b.VerifiedAt = &now
		} else {
			b.VerifiedAt = nil
		}
		if err := tx.UpdateVerification(ctx, b); err != nil {
			return err
		}

		n := notice{kind: model.NotifyBusinessApproved, title: "Business verified", resourceID: b.ID.String(),
			body: fmt.Sprintf("%s can now publish deals.", b.BusinessName)}
		if to == model.VerificationRejected {
			n.kind = model.NotifyBusinessRejected
			n.title = "Business not verified"
			n.body = fmt.Sprintf("%s was not verified: %s", b.BusinessName, feedback)
		}
		_, err = notify(ctx, tx, b.UserID, n)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "business moderated",
		"business_id", b.ID, "from", from, "to", to, "admin_id", adminID)
	metrics.RecordTransition("business", string(to))
	s.record(ctx, audit.Event{
		Action:     "business." + string(to),
		Resource:   audit.ResourceBusiness,
		ResourceID: b.ID.String(),
		ActorID:    adminID.String(),
		Reason:     feedback,
		Metadata:   map[string]any{"from": string(from)},
	})
	return b, nil
}

// ListPendingDeals returns the review queue.
func (s *ModerationService) ListPendingDeals(ctx context.Context, page Page) ([]DealView, error) {
	page = page.normalized()
	deals, err := s.store.ListDeals(ctx, repository.DealFilter{
		Statuses: []model.DealStatus{model.DealStatusPending},
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]DealView, 0, len(deals))
	for _, d := range deals {
		v := newView(d, now)
		if a, err := s.store.GetApprovalByDeal(ctx, d.ID); err == nil {
			v.Approval = a
		}
		views = append(views, v)
	}
	return views, nil
}
