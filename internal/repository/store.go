package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/model"
)

var (
	ErrNotFound  = errors.New("repository: not found")
	ErrDuplicate = errors.New("repository: duplicate")
)

// DBExecutor interface for database operations (can be *sqlx.DB or *sqlx.Tx)
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

// Store is the persistence contract used by the services. Implementations
// are the PostgreSQL store in this package and the in-memory store in
// repository/memory.
type Store interface {
	UserStore
	BusinessStore
	DealStore
	ApprovalStore
	FavoriteStore
	RedemptionStore
	NotificationStore
	RepairStore

	// InTx runs fn in one transaction. fn must use the Store it is given.
	// Calling InTx on a transactional Store reuses the open transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}

type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, userID id.ID) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]model.User, error)
	UpdateUserType(ctx context.Context, userID id.ID, t model.UserType) error
	CountUsersByType(ctx context.Context) (map[string]int, error)
}

type BusinessStore interface {
	CreateBusiness(ctx context.Context, b *model.Business) error
	GetBusiness(ctx context.Context, businessID id.ID) (*model.Business, error)
	GetBusinessForUpdate(ctx context.Context, businessID id.ID) (*model.Business, error)
	GetBusinessByUser(ctx context.Context, userID id.ID) (*model.Business, error)
	UpdateBusinessProfile(ctx context.Context, b *model.Business) error
	UpdateVerification(ctx context.Context, b *model.Business) error
	ListBusinesses(ctx context.Context, status model.VerificationStatus, limit, offset int) ([]model.Business, error)
	CountBusinessesByStatus(ctx context.Context) (map[string]int, error)
}

// DealFilter narrows ListDeals. Zero fields do not filter.
type DealFilter struct {
	BusinessID id.ID
	Statuses   []model.DealStatus
	Category   string
	Query      string
	// Live keeps only deals customers can redeem at Now: approved, started,
	// not ended and owned by an approved business.
	Live bool
	// Effective keeps only deals whose EffectiveStatus at Now equals it.
	Effective model.DealStatus
	Now       time.Time
	Limit     int
	Offset    int
}

type DealStore interface {
	CreateDeal(ctx context.Context, d *model.Deal) error
	GetDeal(ctx context.Context, dealID id.ID) (*model.Deal, error)
	GetDealForUpdate(ctx context.Context, dealID id.ID) (*model.Deal, error)
	UpdateDealContent(ctx context.Context, d *model.Deal) error
	UpdateDealStatus(ctx context.Context, dealID id.ID, status model.DealStatus) error
	SetDealImage(ctx context.Context, dealID id.ID, url string) error
	DeleteDeal(ctx context.Context, dealID id.ID) error
	ListDeals(ctx context.Context, f DealFilter) ([]model.Deal, error)
	IncrementViewCount(ctx context.Context, dealID id.ID) error
	AdjustSaveCount(ctx context.Context, dealID id.ID, delta int) error
	AdjustRedemptionCount(ctx context.Context, dealID id.ID, delta int) error
	CountDealsByStatus(ctx context.Context) (map[string]int, error)
}

type ApprovalStore interface {
	CreateApproval(ctx context.Context, a *model.DealApproval) error
	CreateApprovals(ctx context.Context, approvals []model.DealApproval) error
	GetApprovalByDeal(ctx context.Context, dealID id.ID) (*model.DealApproval, error)
	UpdateApproval(ctx context.Context, a *model.DealApproval) error
}

type FavoriteStore interface {
	// AddFavorite reports whether a row was inserted.
	AddFavorite(ctx context.Context, f *model.Favorite) (bool, error)
	// RemoveFavorite reports whether a row was deleted.
	RemoveFavorite(ctx context.Context, userID, dealID id.ID) (bool, error)
	ListFavoriteDeals(ctx context.Context, userID id.ID) ([]model.Deal, error)
}

type RedemptionStore interface {
	CreateRedemption(ctx context.Context, r *model.Redemption) error
	GetRedemption(ctx context.Context, redemptionID id.ID) (*model.Redemption, error)
	GetRedemptionForUpdate(ctx context.Context, redemptionID id.ID) (*model.Redemption, error)
	UpdateRedemption(ctx context.Context, r *model.Redemption) error
	// CountActiveRedemptions counts the user's non-cancelled redemptions of a deal.
	CountActiveRedemptions(ctx context.Context, userID, dealID id.ID) (int, error)
	ListRedemptionsByUser(ctx context.Context, userID id.ID) ([]model.Redemption, error)
	CountRedemptions(ctx context.Context) (int, error)
	CreateRating(ctx context.Context, r *model.Rating) error
	ListRatingsByDeal(ctx context.Context, dealID id.ID) ([]model.Rating, error)
}

type NotificationStore interface {
	GetPreferences(ctx context.Context, userID id.ID) (*model.NotificationPreference, error)
	SavePreferences(ctx context.Context, p *model.NotificationPreference) error
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID id.ID, unreadOnly bool, limit int) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID, userID id.ID, at time.Time) error
}

// RepairStore holds the bulk fixes run by cmd/repair.
type RepairStore interface {
	ListDealsWithoutApproval(ctx context.Context, limit int) ([]model.Deal, error)
	NormalizeVerificationStatus(ctx context.Context) (int64, error)
	NormalizeDealStatus(ctx context.Context) (int64, error)
	ListExpirableDeals(ctx context.Context, now time.Time, limit int) ([]model.Deal, error)
	RecountRedemptions(ctx context.Context) (int64, error)
	Diagnose(ctx context.Context, now time.Time) (*model.Diagnosis, error)
}

// Postgres implements Store on top of sqlx.
type Postgres struct {
	db *sqlx.DB
	ex DBExecutor
}

var _ Store = (*Postgres)(nil)

// NewPostgres creates a store bound to the connection pool.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db, ex: db}
}

// InTx begins a transaction, runs fn and commits when fn returns nil.
func (s *Postgres) InTx(ctx context.Context, fn func(tx Store) error) error {
	if _, nested := s.ex.(*sqlx.Tx); nested {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Postgres{db: s.db, ex: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping checks the connection pool.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// translate maps driver errors onto the package sentinels.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%s: %w: %s", op, ErrDuplicate, pqErr.Constraint)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// expectRows turns a zero-row update into ErrNotFound.
func expectRows(result sql.Result, op string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func countByColumn(ctx context.Context, ex DBExecutor, query string) (map[string]int, error) {
	var rows []struct {
		Key   string `db:"key"`
		Count int    `db:"count"`
	}
	if err := ex.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Count
	}
	return out, nil
}
