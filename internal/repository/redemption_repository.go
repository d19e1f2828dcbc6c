package repository

import (
	"context"
	"time"

	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/model"
)

const redemptionColumns = `id, user_id, deal_id, status, redeemed_at, completed_at, cancelled_at`

const ratingColumns = `id, redemption_id, user_id, deal_id, rating, comment, anonymous, created_at`

// CreateRedemption inserts a redeemed row. The caller holds the deal lock
// and bumps deals.redemption_count in the same transaction.
func (s *Postgres) CreateRedemption(ctx context.Context, r *model.Redemption) error {
	if r.RedeemedAt.IsZero() {
		r.RedeemedAt = time.Now().UTC()
	}
	if r.Status == "" {
		r.Status = model.RedemptionRedeemed
	}
	_, err := s.ex.NamedExecContext(ctx, `
		INSERT INTO deal_redemptions (`+redemptionColumns+`)
		VALUES (:id, :user_id, :deal_id, :status, :redeemed_at, :completed_at, :cancelled_at)
	`, r)
	return translate(err, "create redemption")
}

func (s *Postgres) GetRedemption(ctx context.Context, redemptionID id.ID) (*model.Redemption, error) {
	var r model.Redemption
	err := s.ex.GetContext(ctx, &r, `SELECT `+redemptionColumns+` FROM deal_redemptions WHERE id = $1`, redemptionID)
	if err != nil {
		return nil, translate(err, "get redemption")
	}
	return &r, nil
}

// GetRedemptionForUpdate reserves the redemption row using SELECT FOR UPDATE
func (s *Postgres) GetRedemptionForUpdate(ctx context.Context, redemptionID id.ID) (*model.Redemption, error) {
	var r model.Redemption
	err := s.ex.GetContext(ctx, &r,
		`SELECT `+redemptionColumns+` FROM deal_redemptions WHERE id = $1 FOR UPDATE`, redemptionID)
	if err != nil {
		return nil, translate(err, "lock redemption")
	}
	return &r, nil
}

func (s *Postgres) UpdateRedemption(ctx context.Context, r *model.Redemption) error {
	result, err := s.ex.NamedExecContext(ctx, `
		UPDATE deal_redemptions
		SET status = :status, completed_at = :completed_at, cancelled_at = :cancelled_at
		WHERE id = :id
	`, r)
	if err != nil {
		return translate(err, "update redemption")
	}
	return expectRows(result, "update redemption")
}

func (s *Postgres) CountActiveRedemptions(ctx context.Context, userID, dealID id.ID) (int, error) {
	var n int
	err := s.ex.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM deal_redemptions
		WHERE user_id = $1 AND deal_id = $2 AND status <> 'cancelled'
	`, userID, dealID)
	if err != nil {
		return 0, translate(err, "count redemptions")
	}
	return n, nil
}

func (s *Postgres) ListRedemptionsByUser(ctx context.Context, userID id.ID) ([]model.Redemption, error) {
	redemptions := []model.Redemption{}
	err := s.ex.SelectContext(ctx, &redemptions,
		`SELECT `+redemptionColumns+` FROM deal_redemptions WHERE user_id = $1 ORDER BY redeemed_at DESC`, userID)
	if err != nil {
		return nil, translate(err, "list redemptions")
	}
	return redemptions, nil
}

func (s *Postgres) CountRedemptions(ctx context.Context) (int, error) {
	var n int
	if err := s.ex.GetContext(ctx, &n, `SELECT COUNT(*) FROM deal_redemptions WHERE status <> 'cancelled'`); err != nil {
		return 0, translate(err, "count redemptions")
	}
	return n, nil
}

// CreateRating fails with ErrDuplicate when the redemption is already rated.
func (s *Postgres) CreateRating(ctx context.Context, r *model.Rating) error {
	r.CreatedAt = time.Now().UTC()
	_, err := s.ex.NamedExecContext(ctx, `
		INSERT INTO redemption_ratings (`+ratingColumns+`)
		VALUES (:id, :redemption_id, :user_id, :deal_id, :rating, :comment, :anonymous, :created_at)
	`, r)
	return translate(err, "create rating")
}

// ListRatingsByDeal blanks the user of anonymous ratings.
func (s *Postgres) ListRatingsByDeal(ctx context.Context, dealID id.ID) ([]model.Rating, error) {
	ratings := []model.Rating{}
	err := s.ex.SelectContext(ctx, &ratings, `
		SELECT id, redemption_id, CASE WHEN anonymous THEN NULL ELSE user_id END AS user_id,
			deal_id, rating, comment, anonymous, created_at
		FROM redemption_ratings WHERE deal_id = $1 ORDER BY created_at DESC
	`, dealID)
	if err != nil {
		return nil, translate(err, "list ratings")
	}
	return ratings, nil
}
