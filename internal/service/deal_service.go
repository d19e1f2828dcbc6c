package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pinnity/pinnity/internal/audit"
	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/imaging"
	"github.com/pinnity/pinnity/internal/metrics"
	"github.com/pinnity/pinnity/internal/model"
	"github.com/pinnity/pinnity/internal/repository"
	"github.com/pinnity/pinnity/internal/storage"
)

const maxCodeAttempts = 5

// DealInput is the vendor-editable deal content.
type DealInput struct {
	Title                 string    `json:"title"`
	Description           string    `json:"description"`
	Category              string    `json:"category"`
	Terms                 string    `json:"terms"`
	OriginalPrice         float64   `json:"original_price"`
	DiscountedPrice       float64   `json:"discounted_price"`
	StartDate             time.Time `json:"start_date"`
	EndDate               time.Time `json:"end_date"`
	MaxRedemptionsPerUser *int      `json:"max_redemptions_per_user"`
	TotalRedemptionsLimit int       `json:"total_redemptions_limit"`
	// Submit sends a new deal straight to review; otherwise it is a draft.
	Submit bool `json:"submit"`
}

func (in *DealInput) validate(now time.Time) error {
	in.Title = strings.TrimSpace(in.Title)
	switch {
	case len(in.Title) < 3 || len(in.Title) > 120:
		return invalid("title", "must be 3 to 120 characters")
	case !model.ValidCategory(in.Category):
		return invalid("category", "is not a known category")
	case in.OriginalPrice < 0 || in.DiscountedPrice < 0:
		return invalid("price", "must not be negative")
	case in.OriginalPrice > 0 && in.DiscountedPrice > in.OriginalPrice:
		return invalid("discounted_price", "must not exceed the original price")
	case in.StartDate.IsZero() || in.EndDate.IsZero():
		return invalid("dates", "start_date and end_date are required")
	case !in.EndDate.After(in.StartDate):
		return invalid("end_date", "must be after start_date")
	case !in.EndDate.After(now):
		return invalid("end_date", "must be in the future")
	case in.MaxRedemptionsPerUser != nil && *in.MaxRedemptionsPerUser < 0:
		return invalid("max_redemptions_per_user", "must not be negative")
	case in.TotalRedemptionsLimit < 0:
		return invalid("total_redemptions_limit", "must not be negative")
	}
	return nil
}

func (in *DealInput) apply(d *model.Deal) {
	d.Title = in.Title
	d.Description = in.Description
	d.Category = in.Category
	d.Terms = in.Terms
	d.OriginalPrice = in.OriginalPrice
	d.DiscountedPrice = in.DiscountedPrice
	d.StartDate = in.StartDate.UTC()
	d.EndDate = in.EndDate.UTC()
	d.MaxRedemptionsPerUser = 1
	if in.MaxRedemptionsPerUser != nil {
		d.MaxRedemptionsPerUser = *in.MaxRedemptionsPerUser
	}
	d.TotalRedemptionsLimit = in.TotalRedemptionsLimit
}

// DealView is a deal as a client sees it at one instant.
type DealView struct {
	model.Deal
	EffectiveStatus model.DealStatus    `json:"effective_status"`
	Approval        *model.DealApproval `json:"approval,omitempty"`
	// RedemptionCode is only filled for the owning vendor.
	RedemptionCode string `json:"redemption_code,omitempty"`
}

func newView(d model.Deal, now time.Time) DealView {
	return DealView{Deal: d, EffectiveStatus: d.EffectiveStatus(now)}
}

// DealQuery filters the public deal list.
type DealQuery struct {
	Category string
	Query    string
	Page
}

// DealService covers the vendor and public sides of deals.
type DealService struct {
	base
	codes  *CodeGenerator
	images storage.ObjectStore
}

func NewDealService(store repository.Store, codes *CodeGenerator, images storage.ObjectStore, opts ...Option) *DealService {
	return &DealService{base: newBase(store, opts), codes: codes, images: images}
}

// ensureApproval returns the deal's approval row, creating it when an older
// code path left it out.
func ensureApproval(ctx context.Context, tx repository.Store, d *model.Deal) (*model.DealApproval, error) {
	a, err := tx.GetApprovalByDeal(ctx, d.ID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	a = &model.DealApproval{ID: id.NewApprovalID(), DealID: d.ID, Status: d.Status}
	if err := tx.CreateApproval(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ownedDeal locks the deal and checks it belongs to the vendor's business.
func ownedDeal(ctx context.Context, tx repository.Store, userID, dealID id.ID) (*model.Deal, error) {
	b, err := tx.GetBusinessByUser(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err, ErrBusinessNotFound)
	}
	d, err := tx.GetDealForUpdate(ctx, dealID)
	if err != nil {
		return nil, mapNotFound(err, ErrDealNotFound)
	}
	if d.BusinessID != b.ID {
		return nil, ErrForbidden
	}
	return d, nil
}

// Create stores a new deal and its approval row in one transaction.
func (s *DealService) Create(ctx context.Context, userID id.ID, in DealInput) (*DealView, error) {
	now := s.now()
	if err := in.validate(now); err != nil {
		return nil, err
	}
	b, err := s.store.GetBusinessByUser(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err, ErrBusinessNotFound)
	}

	d := &model.Deal{ID: id.NewDealID(), BusinessID: b.ID, Status: model.DealStatusDraft}
	in.apply(d)
	a := &model.DealApproval{ID: id.NewApprovalID(), DealID: d.ID, Status: model.DealStatusDraft}
	if in.Submit {
		d.Status = model.DealStatusPending
		a.Status = model.DealStatusPending
		a.SubmittedAt = &now
	}

	for attempt := uint32(0); ; attempt++ {
		d.RedemptionCode = s.codes.Generate(d.ID.String(), attempt)
		err = s.store.InTx(ctx, func(tx repository.Store) error {
			if err := tx.CreateDeal(ctx, d); err != nil {
				return err
			}
			return tx.CreateApproval(ctx, a)
		})
		if err == nil {
			break
		}
		codeClash := errors.Is(err, repository.ErrDuplicate) && strings.Contains(err.Error(), "redemption_code")
		if !codeClash || attempt+1 >= maxCodeAttempts {
			return nil, fmt.Errorf("failed to create deal: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "deal created", "deal_id", d.ID, "business_id", b.ID, "status", d.Status)
	metrics.RecordTransition("deal", string(d.Status))
	s.record(ctx, audit.Event{Action: "deal.created", Resource: audit.ResourceDeal, ResourceID: d.ID.String(), ActorID: userID.String(),
		Metadata: map[string]any{"status": string(d.Status)}})

	v := newView(*d, now)
	v.Approval = a
	v.RedemptionCode = d.RedemptionCode
	return &v, nil
}

// Update edits content of a draft or pending_revision deal.
func (s *DealService) Update(ctx context.Context, userID, dealID id.ID, in DealInput) (*DealView, error) {
	now := s.now()
	if err := in.validate(now); err != nil {
		return nil, err
	}

	var d *model.Deal
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		d, err = ownedDeal(ctx, tx, userID, dealID)
		if err != nil {
			return err
		}
		if !d.Status.Editable() {
			return fmt.Errorf("%w: %s", ErrDealNotEditable, d.Status)
		}
		in.apply(d)
		return tx.UpdateDealContent(ctx, d)
	})
	if err != nil {
		return nil, err
	}

	v := newView(*d, now)
	v.RedemptionCode = d.RedemptionCode
	return &v, nil
}

// Submit sends a draft to review.
func (s *DealService) Submit(ctx context.Context, userID, dealID id.ID) (*DealView, error) {
	return s.toReview(ctx, userID, dealID, model.DealStatusDraft, "deal.submitted")
}

// Resubmit sends a deal back to review after a revision request. The
// approval's revision_count goes up by exactly one.
func (s *DealService) Resubmit(ctx context.Context, userID, dealID id.ID) (*DealView, error) {
	return s.toReview(ctx, userID, dealID, model.DealStatusPendingRevision, "deal.resubmitted")
}

func (s *DealService) toReview(ctx context.Context, userID, dealID id.ID, from model.DealStatus, action string) (*DealView, error) {
	now := s.now()
	var (
		d *model.Deal
		a *model.DealApproval
	)
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		d, err = ownedDeal(ctx, tx, userID, dealID)
		if err != nil {
			return err
		}
		if d.Status != from || !d.Status.CanTransition(model.DealStatusPending) {
			return transitionError("deal", d.Status, model.DealStatusPending)
		}
		if !d.EndDate.After(now) {
			return invalid("end_date", "must be in the future")
		}
		if err := tx.UpdateDealStatus(ctx, d.ID, model.DealStatusPending); err != nil {
			return err
		}
		d.Status = model.DealStatusPending

		a, err = ensureApproval(ctx, tx, d)
		if err != nil {
			return err
		}
		if from == model.DealStatusPendingRevision {
			a.RevisionCount++
		}
		a.Status = model.DealStatusPending
		a.SubmittedAt = &now
		return tx.UpdateApproval(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition("deal", string(model.DealStatusPending))
	s.record(ctx, audit.Event{Action: action, Resource: audit.ResourceDeal, ResourceID: d.ID.String(), ActorID: userID.String(),
		Metadata: map[string]any{"revision_count": a.RevisionCount}})

	v := newView(*d, now)
	v.Approval = a
	v.RedemptionCode = d.RedemptionCode
	return &v, nil
}

// ListForVendor returns every deal of the vendor's business with its approval.
func (s *DealService) ListForVendor(ctx context.Context, userID id.ID) ([]DealView, error) {
	b, err := s.store.GetBusinessByUser(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err, ErrBusinessNotFound)
	}
	deals, err := s.store.ListDeals(ctx, repository.DealFilter{BusinessID: b.ID})
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]DealView, 0, len(deals))
	for _, d := range deals {
		v := newView(d, now)
		v.RedemptionCode = d.RedemptionCode
		if a, err := s.store.GetApprovalByDeal(ctx, d.ID); err == nil {
			v.Approval = a
		}
		views = append(views, v)
	}
	return views, nil
}

// ListPublic returns deals customers can redeem right now. The store filter
// and the badge computation share one instant.
func (s *DealService) ListPublic(ctx context.Context, q DealQuery) ([]DealView, error) {
	now := s.now()
	page := q.Page.normalized()
	deals, err := s.store.ListDeals(ctx, repository.DealFilter{
		Category: q.Category,
		Query:    q.Query,
		Live:     true,
		Now:      now,
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		return nil, err
	}

	views := make([]DealView, 0, len(deals))
	for _, d := range deals {
		if !d.IsLive(now) {
			continue
		}
		views = append(views, newView(d, now))
	}
	return views, nil
}

// GetPublic returns an approved or expired deal of a verified business and
// counts the view.
func (s *DealService) GetPublic(ctx context.Context, dealID id.ID) (*DealView, error) {
	d, err := s.store.GetDeal(ctx, dealID)
	if err != nil {
		return nil, mapNotFound(err, ErrDealNotFound)
	}
	if d.Status != model.DealStatusApproved && d.Status != model.DealStatusExpired {
		return nil, ErrDealNotFound
	}
	b, err := s.store.GetBusiness(ctx, d.BusinessID)
	if err != nil {
		return nil, mapNotFound(err, ErrDealNotFound)
	}
	if !b.IsVerified() {
		return nil, ErrDealNotFound
	}

	if err := s.store.IncrementViewCount(ctx, d.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to count deal view", "deal_id", d.ID, "error", err)
	} else {
		d.ViewCount++
	}

	v := newView(*d, s.now())
	return &v, nil
}

// Get returns any deal with its approval, for admins.
func (s *DealService) Get(ctx context.Context, dealID id.ID) (*DealView, error) {
	d, err := s.store.GetDeal(ctx, dealID)
	if err != nil {
		return nil, mapNotFound(err, ErrDealNotFound)
	}
	v := newView(*d, s.now())
	if a, err := s.store.GetApprovalByDeal(ctx, d.ID); err == nil {
		v.Approval = a
	}
	return &v, nil
}

// ListByStatus lists deals for admins. approved and expired are matched on
// the effective status, the moderation states on the stored one. Both are
// filtered by the store, so paging counts only matching deals.
func (s *DealService) ListByStatus(ctx context.Context, status string, page Page) ([]DealView, error) {
	now := s.now()
	f := repository.DealFilter{Now: now}
	if status != "" {
		st, ok := model.ParseDealStatus(status)
		if !ok {
			return nil, invalid("status", "unknown deal status")
		}
		switch st {
		case model.DealStatusApproved, model.DealStatusExpired:
			f.Effective = st
		default:
			f.Statuses = []model.DealStatus{st}
		}
	}
	page = page.normalized()
	f.Limit, f.Offset = page.Limit, page.Offset

	deals, err := s.store.ListDeals(ctx, f)
	if err != nil {
		return nil, err
	}

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

// Delete removes a deal and its dependent rows.
func (s *DealService) Delete(ctx context.Context, adminID, dealID id.ID) error {
	if err := s.store.DeleteDeal(ctx, dealID); err != nil {
		return mapNotFound(err, ErrDealNotFound)
	}
	s.logger.InfoContext(ctx, "deal deleted", "deal_id", dealID, "admin_id", adminID)
	s.record(ctx, audit.Event{Action: "deal.deleted", Resource: audit.ResourceDeal, ResourceID: dealID.String(), ActorID: adminID.String()})
	return nil
}

// Ratings lists a deal's ratings, anonymous ones without the user.
func (s *DealService) Ratings(ctx context.Context, dealID id.ID) ([]model.Rating, error) {
	if _, err := s.store.GetDeal(ctx, dealID); err != nil {
		return nil, mapNotFound(err, ErrDealNotFound)
	}
	return s.store.ListRatingsByDeal(ctx, dealID)
}

// UploadImage crops and compresses src and stores it as the deal image.
// Only editable deals accept a new image.
func (s *DealService) UploadImage(ctx context.Context, userID, dealID id.ID, src []byte, opts imaging.Options, progress imaging.ProgressFunc) (*DealView, *imaging.Result, error) {
	b, err := s.store.GetBusinessByUser(ctx, userID)
	if err != nil {
		return nil, nil, mapNotFound(err, ErrBusinessNotFound)
	}
	d, err := s.store.GetDeal(ctx, dealID)
	if err != nil {
		return nil, nil, mapNotFound(err, ErrDealNotFound)
	}
	if d.BusinessID != b.ID {
		return nil, nil, ErrForbidden
	}
	if !d.Status.Editable() {
		return nil, nil, fmt.Errorf("%w: %s", ErrDealNotEditable, d.Status)
	}

	res, err := imaging.Process(src, opts, progress)
	if err != nil {
		return nil, nil, invalid("image", err.Error())
	}
	metrics.RecordCompressionAttempts(res.Attempts)
	if !res.WithinLimit {
		s.logger.WarnContext(ctx, "image still over size limit after compression",
			"deal_id", d.ID, "bytes", len(res.Data), "quality", res.Quality, "attempts", res.Attempts)
	}

	key := fmt.Sprintf("deals/%s/%d.jpg", d.ID, s.now().UnixNano())
	url, err := s.images.Put(ctx, key, "image/jpeg", res.Data)
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.SetDealImage(ctx, d.ID, url); err != nil {
		return nil, nil, mapNotFound(err, ErrDealNotFound)
	}
	d.ImageURL = url

	v := newView(*d, s.now())
	v.RedemptionCode = d.RedemptionCode
	return &v, res, nil
}
