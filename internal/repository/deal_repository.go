package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/model"
)

const dealColumns = `d.id, d.business_id, d.title, d.description, d.category, d.image_url,
	d.original_price, d.discounted_price, d.terms, d.start_date, d.end_date, d.status,
	d.max_redemptions_per_user, d.total_redemptions_limit, d.redemption_code,
	d.view_count, d.save_count, d.redemption_count, d.created_at, d.updated_at`

// CreateDeal creates a new deal
func (s *Postgres) CreateDeal(ctx context.Context, d *model.Deal) error {
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	query := `
		INSERT INTO deals (id, business_id, title, description, category, image_url,
			original_price, discounted_price, terms, start_date, end_date, status,
			max_redemptions_per_user, total_redemptions_limit, redemption_code,
			view_count, save_count, redemption_count, created_at, updated_at)
		VALUES (:id, :business_id, :title, :description, :category, :image_url,
			:original_price, :discounted_price, :terms, :start_date, :end_date, :status,
			:max_redemptions_per_user, :total_redemptions_limit, :redemption_code,
			0, 0, 0, :created_at, :updated_at)
	`
	_, err := s.ex.NamedExecContext(ctx, query, d)
	return translate(err, "create deal")
}

// GetDeal retrieves a deal by ID
func (s *Postgres) GetDeal(ctx context.Context, dealID id.ID) (*model.Deal, error) {
	var d model.Deal
	if err := s.ex.GetContext(ctx, &d, `SELECT `+dealColumns+` FROM deals d WHERE d.id = $1`, dealID); err != nil {
		return nil, translate(err, "get deal")
	}
	return &d, nil
}

// GetDealForUpdate locks the deal row; concurrent redemptions and
// moderation of the same deal serialize on it.
func (s *Postgres) GetDealForUpdate(ctx context.Context, dealID id.ID) (*model.Deal, error) {
	var d model.Deal
	if err := s.ex.GetContext(ctx, &d, `SELECT `+dealColumns+` FROM deals d WHERE d.id = $1 FOR UPDATE`, dealID); err != nil {
		return nil, translate(err, "lock deal")
	}
	return &d, nil
}

// UpdateDealContent writes the vendor-editable fields.
func (s *Postgres) UpdateDealContent(ctx context.Context, d *model.Deal) error {
	d.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE deals
		SET title = :title, description = :description, category = :category,
			original_price = :original_price, discounted_price = :discounted_price, terms = :terms,
			start_date = :start_date, end_date = :end_date,
			max_redemptions_per_user = :max_redemptions_per_user,
			total_redemptions_limit = :total_redemptions_limit, updated_at = :updated_at
		WHERE id = :id
	`
	result, err := s.ex.NamedExecContext(ctx, query, d)
	if err != nil {
		return translate(err, "update deal")
	}
	return expectRows(result, "update deal")
}

func (s *Postgres) UpdateDealStatus(ctx context.Context, dealID id.ID, status model.DealStatus) error {
	result, err := s.ex.ExecContext(ctx,
		`UPDATE deals SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now().UTC(), dealID)
	if err != nil {
		return translate(err, "update deal status")
	}
	return expectRows(result, "update deal status")
}

func (s *Postgres) SetDealImage(ctx context.Context, dealID id.ID, url string) error {
	result, err := s.ex.ExecContext(ctx,
		`UPDATE deals SET image_url = $1, updated_at = $2 WHERE id = $3`, url, time.Now().UTC(), dealID)
	if err != nil {
		return translate(err, "set deal image")
	}
	return expectRows(result, "set deal image")
}

// DeleteDeal removes the deal; dependent rows cascade.
func (s *Postgres) DeleteDeal(ctx context.Context, dealID id.ID) error {
	result, err := s.ex.ExecContext(ctx, `DELETE FROM deals WHERE id = $1`, dealID)
	if err != nil {
		return translate(err, "delete deal")
	}
	return expectRows(result, "delete deal")
}

// ListDeals builds the WHERE clause from the filter. Live uses the same
// boundary as model.Deal.EffectiveStatus: a deal ending exactly at Now is
// still live.
func (s *Postgres) ListDeals(ctx context.Context, f DealFilter) ([]model.Deal, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !f.BusinessID.IsNil() {
		where = append(where, "d.business_id = "+arg(f.BusinessID))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		where = append(where, "d.status = ANY("+arg(pq.Array(statuses))+")")
	}
	if f.Category != "" {
		where = append(where, "d.category = "+arg(f.Category))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		p := arg("%" + q + "%")
		where = append(where, "(d.title ILIKE "+p+" OR d.description ILIKE "+p+")")
	}
	if f.Live {
		now := arg(f.Now)
		where = append(where,
			"d.status = 'approved'",
			"d.start_date <= "+now,
			"d.end_date >= "+now,
			"b.verification_status = 'approved'",
		)
	}

	if f.Effective != "" {
		where = append(where, effectiveStatusClause(f.Effective, arg(f.Now), arg))
	}

	query := `SELECT ` + dealColumns + ` FROM deals d JOIN businesses b ON b.id = d.business_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY d.created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}

	deals := []model.Deal{}
	if err := s.ex.SelectContext(ctx, &deals, query, args...); err != nil {
		return nil, translate(err, "list deals")
	}
	return deals, nil
}

// effectiveStatusClause mirrors model.Deal.EffectiveStatus: any deal that is
// not rejected and ended before now reads as expired.
func effectiveStatusClause(st model.DealStatus, now string, arg func(interface{}) string) string {
	if st == model.DealStatusExpired {
		return "(d.status = 'expired' OR (d.status <> 'rejected' AND d.end_date < " + now + "))"
	}
	if st == model.DealStatusRejected {
		return "d.status = 'rejected'"
	}
	return "(d.status = " + arg(string(st)) + " AND d.end_date >= " + now + ")"
}

func (s *Postgres) IncrementViewCount(ctx context.Context, dealID id.ID) error {
	_, err := s.ex.ExecContext(ctx, `UPDATE deals SET view_count = view_count + 1 WHERE id = $1`, dealID)
	return translate(err, "increment view count")
}

// AdjustSaveCount never drops the counter below zero.
func (s *Postgres) AdjustSaveCount(ctx context.Context, dealID id.ID, delta int) error {
	result, err := s.ex.ExecContext(ctx,
		`UPDATE deals SET save_count = GREATEST(save_count + $1, 0) WHERE id = $2`, delta, dealID)
	if err != nil {
		return translate(err, "adjust save count")
	}
	return expectRows(result, "adjust save count")
}

// AdjustRedemptionCount never drops the counter below zero.
func (s *Postgres) AdjustRedemptionCount(ctx context.Context, dealID id.ID, delta int) error {
	result, err := s.ex.ExecContext(ctx,
		`UPDATE deals SET redemption_count = GREATEST(redemption_count + $1, 0) WHERE id = $2`, delta, dealID)
	if err != nil {
		return translate(err, "adjust redemption count")
	}
	return expectRows(result, "adjust redemption count")
}

func (s *Postgres) CountDealsByStatus(ctx context.Context) (map[string]int, error) {
	counts, err := countByColumn(ctx, s.ex, `SELECT status AS key, COUNT(*) AS count FROM deals GROUP BY status`)
	if err != nil {
		return nil, translate(err, "count deals")
	}
	return counts, nil
}
