package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pinnity/pinnity/internal/audit"
	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/metrics"
	"github.com/pinnity/pinnity/internal/model"
	"github.com/pinnity/pinnity/internal/repository"
)

// RedemptionPolicy controls limit enforcement. With EnforceLimits off a user
// may redeem a deal more often than max_redemptions_per_user allows, which
// keeps older clients working.
type RedemptionPolicy struct {
	EnforceLimits bool
}

// Receipt is what a customer shows at the business after redeeming.
type Receipt struct {
	model.Redemption
	DealTitle      string `json:"deal_title"`
	RedemptionCode string `json:"redemption_code"`
}

// RatingInput is a customer's score for a redemption.
type RatingInput struct {
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	Anonymous bool   `json:"anonymous"`
}

// RedemptionService records redemptions, their completion and ratings.
type RedemptionService struct {
	base
	policy RedemptionPolicy
}

func NewRedemptionService(store repository.Store, policy RedemptionPolicy, opts ...Option) *RedemptionService {
	return &RedemptionService{base: newBase(store, opts), policy: policy}
}

// Redeem claims a deal for userID. The deal row is locked for the duration
// of the checks so concurrent redemptions cannot overshoot the limits.
func (s *RedemptionService) Redeem(ctx context.Context, userID, dealID id.ID) (*Receipt, error) {
	start := time.Now()
	result := "failed"
	defer func() {
		metrics.RecordRedeemDuration(result, time.Since(start).Seconds())
	}()

	now := s.now()
	r := &model.Redemption{
		ID:         id.NewRedemptionID(),
		UserID:     userID,
		DealID:     dealID,
		Status:     model.RedemptionRedeemed,
		RedeemedAt: now,
	}

	var d *model.Deal
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		d, err = tx.GetDealForUpdate(ctx, dealID)
		if err != nil {
			return mapNotFound(err, ErrDealNotFound)
		}
		if !d.IsLive(now) {
			return fmt.Errorf("%w: status %s", ErrDealNotRedeemable, d.EffectiveStatus(now))
		}
		b, err := tx.GetBusiness(ctx, d.BusinessID)
		if err != nil {
			return mapNotFound(err, ErrBusinessNotFound)
		}
		if !b.IsVerified() {
			return fmt.Errorf("%w: business not verified", ErrDealNotRedeemable)
		}

		if s.policy.EnforceLimits {
			if d.SoldOut() {
				return ErrDealSoldOut
			}
			if d.MaxRedemptionsPerUser > 0 {
				n, err := tx.CountActiveRedemptions(ctx, userID, dealID)
				if err != nil {
					return err
				}
				if n >= d.MaxRedemptionsPerUser {
					return ErrRedemptionLimitReached
				}
			}
		}

		if err := tx.CreateRedemption(ctx, r); err != nil {
			return err
		}
		return tx.AdjustRedemptionCount(ctx, dealID, 1)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrRedemptionLimitReached):
			result = "limit"
		case errors.Is(err, ErrDealSoldOut):
			result = "sold_out"
		case errors.Is(err, ErrDealNotRedeemable):
			result = "not_redeemable"
		}
		return nil, err
	}
	result = "success"

	s.logger.InfoContext(ctx, "deal redeemed", "redemption_id", r.ID, "deal_id", dealID, "user_id", userID)
	s.record(ctx, audit.Event{Action: "redemption.created", Resource: audit.ResourceRedemption, ResourceID: r.ID.String(), ActorID: userID.String(),
		Metadata: map[string]any{"deal_id": dealID.String()}})

	return &Receipt{Redemption: *r, DealTitle: d.Title, RedemptionCode: d.RedemptionCode}, nil
}

// Cancel withdraws the customer's own redeemed row and frees its slot.
func (s *RedemptionService) Cancel(ctx context.Context, userID, redemptionID id.ID) (*model.Redemption, error) {
	now := s.now()
	var r *model.Redemption
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		r, err = tx.GetRedemptionForUpdate(ctx, redemptionID)
		if err != nil {
			return mapNotFound(err, ErrRedemptionNotFound)
		}
		if r.UserID != userID {
			return ErrRedemptionNotFound
		}
		if r.Status != model.RedemptionRedeemed {
			return fmt.Errorf("%w: %s", ErrRedemptionNotActive, r.Status)
		}
		r.Status = model.RedemptionCancelled
		r.CancelledAt = &now
		if err := tx.UpdateRedemption(ctx, r); err != nil {
			return err
		}
		return tx.AdjustRedemptionCount(ctx, r.DealID, -1)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.Event{Action: "redemption.cancelled", Resource: audit.ResourceRedemption, ResourceID: r.ID.String(), ActorID: userID.String()})
	return r, nil
}

// Complete is called by the vendor once the customer presented the deal's
// redemption code.
func (s *RedemptionService) Complete(ctx context.Context, vendorID, redemptionID id.ID, code string) (*model.Redemption, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, invalid("code", "is required")
	}

	now := s.now()
	var r *model.Redemption
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		r, err = tx.GetRedemptionForUpdate(ctx, redemptionID)
		if err != nil {
			return mapNotFound(err, ErrRedemptionNotFound)
		}
		d, err := tx.GetDeal(ctx, r.DealID)
		if err != nil {
			return mapNotFound(err, ErrDealNotFound)
		}
		b, err := tx.GetBusinessByUser(ctx, vendorID)
		if err != nil {
			return mapNotFound(err, ErrBusinessNotFound)
		}
		if d.BusinessID != b.ID {
			return ErrForbidden
		}
		if d.RedemptionCode != code {
			return ErrInvalidRedemptionCode
		}
		if r.Status != model.RedemptionRedeemed {
			return fmt.Errorf("%w: %s", ErrRedemptionNotActive, r.Status)
		}
		r.Status = model.RedemptionCompleted
		r.CompletedAt = &now
		if err := tx.UpdateRedemption(ctx, r); err != nil {
			return err
		}
		_, err = notify(ctx, tx, r.UserID, notice{
			kind:       model.NotifyRedemptionCompleted,
			title:      "Redemption complete",
			body:       fmt.Sprintf("Enjoy %s. You can now rate this deal.", d.Title),
			resourceID: r.ID.String(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.Event{Action: "redemption.completed", Resource: audit.ResourceRedemption, ResourceID: r.ID.String(), ActorID: vendorID.String()})
	return r, nil
}

// Rate scores a redeemed or completed redemption, once.
func (s *RedemptionService) Rate(ctx context.Context, userID, redemptionID id.ID, in RatingInput) (*model.Rating, error) {
	if in.Rating < model.MinRating || in.Rating > model.MaxRating {
		return nil, invalid("rating", fmt.Sprintf("must be between %d and %d", model.MinRating, model.MaxRating))
	}
	in.Comment = strings.TrimSpace(in.Comment)
	if len(in.Comment) > 2000 {
		return nil, invalid("comment", "must be at most 2000 characters")
	}

	r, err := s.store.GetRedemption(ctx, redemptionID)
	if err != nil {
		return nil, mapNotFound(err, ErrRedemptionNotFound)
	}
	if r.UserID != userID {
		return nil, ErrRedemptionNotFound
	}
	if !r.Status.Rateable() {
		return nil, fmt.Errorf("%w: %s", ErrRedemptionNotActive, r.Status)
	}

	rating := &model.Rating{
		ID:           id.NewRatingID(),
		RedemptionID: r.ID,
		UserID:       userID,
		DealID:       r.DealID,
		Rating:       in.Rating,
		Comment:      in.Comment,
		Anonymous:    in.Anonymous,
	}
	if err := s.store.CreateRating(ctx, rating); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyRated
		}
		return nil, err
	}
	return rating, nil
}

func (s *RedemptionService) ListForUser(ctx context.Context, userID id.ID) ([]model.Redemption, error) {
	return s.store.ListRedemptionsByUser(ctx, userID)
}
