package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/metrics"
	"github.com/pinnity/pinnity/internal/model"
	"github.com/pinnity/pinnity/internal/repository"
)

// Repair job names accepted by Run.
const (
	JobBackfillApprovals  = "backfill-approvals"
	JobVerificationStatus = "verification-status"
	JobDealStatus         = "deal-status"
	JobExpire             = "expire"
	JobRedemptionCounts   = "redemption-counts"
)

// Jobs lists every write job in the order "all" runs them.
var Jobs = []string{JobVerificationStatus, JobDealStatus, JobBackfillApprovals, JobExpire, JobRedemptionCounts}

const repairBatchSize = 500

// Report is the outcome of one repair job.
type Report struct {
	Job      string        `json:"job"`
	Rows     int64         `json:"rows"`
	Duration time.Duration `json:"duration"`
}

// RepairService patches rows written by older code paths. Every job is
// idempotent; a second run reports zero rows.
type RepairService struct {
	base
	limiter *rate.Limiter
}

// NewRepairService throttles row writes to rps rows per second. rps <= 0
// disables throttling.
func NewRepairService(store repository.Store, rps int, opts ...Option) *RepairService {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &RepairService{base: newBase(store, opts), limiter: rate.NewLimiter(limit, repairBatchSize)}
}

// Run executes one job by name.
func (s *RepairService) Run(ctx context.Context, job string) (*Report, error) {
	start := time.Now()
	var (
		n   int64
		err error
	)
	switch job {
	case JobBackfillApprovals:
		n, err = s.BackfillApprovals(ctx)
	case JobVerificationStatus:
		n, err = s.store.NormalizeVerificationStatus(ctx)
	case JobDealStatus:
		n, err = s.store.NormalizeDealStatus(ctx)
	case JobExpire:
		n, err = s.Expire(ctx)
	case JobRedemptionCounts:
		n, err = s.store.RecountRedemptions(ctx)
	default:
		return nil, invalid("job", fmt.Sprintf("unknown job %q", job))
	}
	if err != nil {
		return nil, fmt.Errorf("repair %s: %w", job, err)
	}

	metrics.RecordRepair(job, n)
	s.logger.InfoContext(ctx, "repair job finished", "job", job, "rows", n, "duration", time.Since(start))
	return &Report{Job: job, Rows: n, Duration: time.Since(start)}, nil
}

// RunAll executes every job in Jobs order and stops at the first failure.
func (s *RepairService) RunAll(ctx context.Context) ([]Report, error) {
	reports := make([]Report, 0, len(Jobs))
	for _, job := range Jobs {
		r, err := s.Run(ctx, job)
		if err != nil {
			return reports, err
		}
		reports = append(reports, *r)
	}
	return reports, nil
}

// Diagnose counts invalid rows without writing.
func (s *RepairService) Diagnose(ctx context.Context) (*model.Diagnosis, error) {
	return s.store.Diagnose(ctx, s.now())
}

// BackfillApprovals creates the missing approval row of every deal, mirroring
// the deal's status.
func (s *RepairService) BackfillApprovals(ctx context.Context) (int64, error) {
	var total int64
	for {
		deals, err := s.store.ListDealsWithoutApproval(ctx, repairBatchSize)
		if err != nil {
			return total, err
		}
		if len(deals) == 0 {
			return total, nil
		}
		if err := s.limiter.WaitN(ctx, len(deals)); err != nil {
			return total, err
		}

		approvals := make([]model.DealApproval, 0, len(deals))
		for _, d := range deals {
			st, ok := model.ParseDealStatus(string(d.Status))
			if !ok {
				st = model.DealStatusPending
			}
			approvals = append(approvals, model.DealApproval{ID: id.NewApprovalID(), DealID: d.ID, Status: st})
		}
		if err := s.store.CreateApprovals(ctx, approvals); err != nil {
			return total, err
		}
		total += int64(len(approvals))
		if len(deals) < repairBatchSize {
			return total, nil
		}
	}
}

// Expire persists expired for approved deals past their end date.
func (s *RepairService) Expire(ctx context.Context) (int64, error) {
	now := s.now()
	var total int64
	for {
		deals, err := s.store.ListExpirableDeals(ctx, now, repairBatchSize)
		if err != nil {
			return total, err
		}
		var fixed int64
		for _, candidate := range deals {
			if err := s.limiter.Wait(ctx); err != nil {
				return total, err
			}
			err := s.store.InTx(ctx, func(tx repository.Store) error {
				d, err := tx.GetDealForUpdate(ctx, candidate.ID)
				if err != nil {
					return err
				}
				if d.Status != model.DealStatusApproved || d.EffectiveStatus(now) != model.DealStatusExpired {
					return nil
				}
				fixed++
				return tx.UpdateDealStatus(ctx, d.ID, model.DealStatusExpired)
			})
			if err != nil {
				return total, err
			}
		}
		total += fixed
		if len(deals) < repairBatchSize || fixed == 0 {
			return total, nil
		}
	}
}
