package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/model"
)

const approvalColumns = `id, deal_id, status, feedback, revision_count, reviewed_by, reviewed_at, submitted_at, created_at, updated_at`

// approvalBatchSize keeps batch inserts under the PostgreSQL parameter limit.
const approvalBatchSize = 1000

func (s *Postgres) CreateApproval(ctx context.Context, a *model.DealApproval) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	query := `
		INSERT INTO deal_approvals (` + approvalColumns + `)
		VALUES (:id, :deal_id, :status, :feedback, :revision_count, :reviewed_by, :reviewed_at, :submitted_at, :created_at, :updated_at)
	`
	_, err := s.ex.NamedExecContext(ctx, query, a)
	return translate(err, "create approval")
}

// CreateApprovals inserts approvals in batches. Deals that already have an
// approval row are skipped.
func (s *Postgres) CreateApprovals(ctx context.Context, approvals []model.DealApproval) error {
	now := time.Now().UTC()

	for i := 0; i < len(approvals); i += approvalBatchSize {
		end := i + approvalBatchSize
		if end > len(approvals) {
			end = len(approvals)
		}

		if err := s.insertApprovalBatch(ctx, approvals[i:end], now); err != nil {
			return fmt.Errorf("failed to insert approval batch: %w", err)
		}
	}

	return nil
}

// insertApprovalBatch inserts a batch of approvals using a single query
func (s *Postgres) insertApprovalBatch(ctx context.Context, batch []model.DealApproval, createdAt time.Time) error {
	if len(batch) == 0 {
		return nil
	}

	const cols = 6
	valuesClause := make([]string, len(batch))
	args := make([]interface{}, 0, len(batch)*cols)

	for i, a := range batch {
		valuesClause[i] = fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, 0, $%d)",
			i*cols+1, i*cols+2, i*cols+3, i*cols+4, i*cols+5, i*cols+6, i*cols+6)
		args = append(args, a.ID, a.DealID, a.Status, a.Feedback, a.SubmittedAt, createdAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO deal_approvals (id, deal_id, status, feedback, submitted_at, created_at, revision_count, updated_at)
		VALUES %s
		ON CONFLICT (deal_id) DO NOTHING
	`, strings.Join(valuesClause, ", "))

	if _, err := s.ex.ExecContext(ctx, query, args...); err != nil {
		return translate(err, "execute batch insert")
	}
	return nil
}

func (s *Postgres) GetApprovalByDeal(ctx context.Context, dealID id.ID) (*model.DealApproval, error) {
	var a model.DealApproval
	err := s.ex.GetContext(ctx, &a, `SELECT `+approvalColumns+` FROM deal_approvals WHERE deal_id = $1`, dealID)
	if err != nil {
		return nil, translate(err, "get approval")
	}
	return &a, nil
}

func (s *Postgres) UpdateApproval(ctx context.Context, a *model.DealApproval) error {
	a.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE deal_approvals
		SET status = :status, feedback = :feedback, revision_count = :revision_count,
			reviewed_by = :reviewed_by, reviewed_at = :reviewed_at, submitted_at = :submitted_at,
			updated_at = :updated_at
		WHERE id = :id
	`
	result, err := s.ex.NamedExecContext(ctx, query, a)
	if err != nil {
		return translate(err, "update approval")
	}
	return expectRows(result, "update approval")
}
