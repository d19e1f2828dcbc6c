package repository

import (
	"context"
	"time"

	"github.com/pinnity/pinnity/internal/model"
)

// ListDealsWithoutApproval reads status through COALESCE so rows written
// before the NOT NULL constraint still scan.
func (s *Postgres) ListDealsWithoutApproval(ctx context.Context, limit int) ([]model.Deal, error) {
	deals := []model.Deal{}
	err := s.ex.SelectContext(ctx, &deals, `
		SELECT d.id, d.business_id, d.title, COALESCE(d.status, 'pending') AS status,
			d.start_date, d.end_date, d.created_at, d.updated_at
		FROM deals d
		LEFT JOIN deal_approvals a ON a.deal_id = d.id
		WHERE a.id IS NULL
		ORDER BY d.created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, translate(err, "list deals without approval")
	}
	return deals, nil
}

func (s *Postgres) NormalizeVerificationStatus(ctx context.Context) (int64, error) {
	result, err := s.ex.ExecContext(ctx, `
		UPDATE businesses
		SET verification_status = CASE
				WHEN LOWER(verification_status) = 'verified' THEN 'approved'
				ELSE 'pending'
			END,
			updated_at = NOW()
		WHERE verification_status IS NULL
			OR verification_status = ''
			OR LOWER(verification_status) = 'verified'
	`)
	if err != nil {
		return 0, translate(err, "normalize verification status")
	}
	return result.RowsAffected()
}

func (s *Postgres) NormalizeDealStatus(ctx context.Context) (int64, error) {
	result, err := s.ex.ExecContext(ctx, `
		UPDATE deals
		SET status = CASE
				WHEN LOWER(status) = 'verified' THEN 'approved'
				ELSE 'pending'
			END,
			updated_at = NOW()
		WHERE status IS NULL OR status = '' OR LOWER(status) = 'verified'
	`)
	if err != nil {
		return 0, translate(err, "normalize deal status")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if _, err := s.ex.ExecContext(ctx, `
		UPDATE deal_approvals SET status = 'approved', updated_at = NOW()
		WHERE LOWER(status) = 'verified'
	`); err != nil {
		return 0, translate(err, "normalize approval status")
	}
	return n, nil
}

// ListExpirableDeals returns approved deals whose end date is before now.
func (s *Postgres) ListExpirableDeals(ctx context.Context, now time.Time, limit int) ([]model.Deal, error) {
	deals := []model.Deal{}
	err := s.ex.SelectContext(ctx, &deals, `
		SELECT `+dealColumns+` FROM deals d
		WHERE d.status = 'approved' AND d.end_date < $1
		ORDER BY d.end_date ASC LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, translate(err, "list expirable deals")
	}
	return deals, nil
}

// RecountRedemptions resets redemption_count to the number of
// non-cancelled redemptions where the two disagree.
func (s *Postgres) RecountRedemptions(ctx context.Context) (int64, error) {
	result, err := s.ex.ExecContext(ctx, `
		UPDATE deals d SET redemption_count = c.n, updated_at = NOW()
		FROM (
			SELECT d2.id, COUNT(r.id) AS n
			FROM deals d2
			LEFT JOIN deal_redemptions r ON r.deal_id = d2.id AND r.status <> 'cancelled'
			GROUP BY d2.id
		) c
		WHERE c.id = d.id AND d.redemption_count <> c.n
	`)
	if err != nil {
		return 0, translate(err, "recount redemptions")
	}
	return result.RowsAffected()
}

func (s *Postgres) Diagnose(ctx context.Context, now time.Time) (*model.Diagnosis, error) {
	var d model.Diagnosis
	checks := []struct {
		dest  *int
		query string
		args  []interface{}
	}{
		{&d.DealsWithoutApproval, `SELECT COUNT(*) FROM deals d LEFT JOIN deal_approvals a ON a.deal_id = d.id WHERE a.id IS NULL`, nil},
		{&d.BusinessesMissingStatus, `SELECT COUNT(*) FROM businesses WHERE verification_status IS NULL OR verification_status = ''`, nil},
		{&d.BusinessesVerifiedSynonym, `SELECT COUNT(*) FROM businesses WHERE LOWER(verification_status) = 'verified'`, nil},
		{&d.DealsMissingStatus, `SELECT COUNT(*) FROM deals WHERE status IS NULL OR status = ''`, nil},
		{&d.DealsVerifiedSynonym, `SELECT COUNT(*) FROM deals WHERE LOWER(status) = 'verified'`, nil},
		{&d.ExpiredNotPersisted, `SELECT COUNT(*) FROM deals WHERE status = 'approved' AND end_date < $1`, []interface{}{now}},
		{&d.RedemptionCountMismatches, `
			SELECT COUNT(*) FROM deals d
			WHERE d.redemption_count <> (
				SELECT COUNT(*) FROM deal_redemptions r WHERE r.deal_id = d.id AND r.status <> 'cancelled'
			)`, nil},
	}

	for _, c := range checks {
		if err := s.ex.GetContext(ctx, c.dest, c.query, c.args...); err != nil {
			return nil, translate(err, "diagnose")
		}
	}
	return &d, nil
}
