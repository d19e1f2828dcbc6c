package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/pinnity/pinnity/internal/database"
	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/model"
	"github.com/pinnity/pinnity/internal/repository"
)

// openTestStore connects to PINNITY_TEST_DATABASE_URL and applies the
// schema. The test is skipped when the variable is unset.
func openTestStore(t *testing.T) *repository.Postgres {
	t.Helper()
	dsn := os.Getenv("PINNITY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PINNITY_TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := (&database.DB{Postgres: db}).Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repository.NewPostgres(db)
}

func createVendorDeal(t *testing.T, ctx context.Context, s repository.Store) (*model.Business, *model.Deal) {
	t.Helper()
	u := &model.User{ID: id.NewUserID(), Email: id.NewUserID().String() + "@example.com",
		PasswordHash: "x", UserType: model.UserBusiness}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	b := &model.Business{ID: id.NewBusinessID(), UserID: u.ID, BusinessName: "Bakery"}
	if err := s.CreateBusiness(ctx, b); err != nil {
		t.Fatalf("create business: %v", err)
	}
	now := time.Now().UTC()
	d := &model.Deal{
		ID: id.NewDealID(), BusinessID: b.ID, Title: "Bread", Status: model.DealStatusPending,
		StartDate: now.Add(-time.Hour), EndDate: now.Add(24 * time.Hour),
		MaxRedemptionsPerUser: 1, RedemptionCode: id.NewDealID().String(),
	}
	if err := s.CreateDeal(ctx, d); err != nil {
		t.Fatalf("create deal: %v", err)
	}
	return b, d
}

func TestPostgresBusinessDefaultsToPending(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	b, _ := createVendorDeal(t, ctx, s)
	got, err := s.GetBusiness(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.VerificationStatus != model.VerificationPending {
		t.Fatalf("expected pending, got %q", got.VerificationStatus)
	}
}

func TestPostgresFavoriteConflictDoesNothing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, d := createVendorDeal(t, ctx, s)

	u := &model.User{ID: id.NewUserID(), Email: id.NewUserID().String() + "@example.com", PasswordHash: "x", UserType: model.UserIndividual}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}

	first, err := s.AddFavorite(ctx, &model.Favorite{ID: id.NewFavoriteID(), UserID: u.ID, DealID: d.ID})
	if err != nil || !first {
		t.Fatalf("first add: %v %v", first, err)
	}
	second, err := s.AddFavorite(ctx, &model.Favorite{ID: id.NewFavoriteID(), UserID: u.ID, DealID: d.ID})
	if err != nil || second {
		t.Fatalf("second add: %v %v", second, err)
	}
}

func TestPostgresTxRollback(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, d := createVendorDeal(t, ctx, s)
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx repository.Store) error {
		if _, err := tx.GetDealForUpdate(ctx, d.ID); err != nil {
			return err
		}
		if err := tx.AdjustRedemptionCount(ctx, d.ID, 1); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, err := s.GetDeal(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.RedemptionCount != 0 {
		t.Fatalf("expected rollback, redemption_count=%d", got.RedemptionCount)
	}
}

func TestPostgresNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetDeal(context.Background(), id.NewDealID()); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresListDealsEffectiveStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	b, d := createVendorDeal(t, ctx, s)
	if err := s.UpdateDealStatus(ctx, d.ID, model.DealStatusApproved); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(48 * time.Hour)

	tests := []struct {
		name      string
		effective model.DealStatus
		now       time.Time
		want      int
	}{
		{"approved before end", model.DealStatusApproved, time.Now(), 1},
		{"approved after end", model.DealStatusApproved, later, 0},
		{"expired after end", model.DealStatusExpired, later, 1},
		{"expired before end", model.DealStatusExpired, time.Now(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deals, err := s.ListDeals(ctx, repository.DealFilter{BusinessID: b.ID, Effective: tt.effective, Now: tt.now, Limit: 1})
			if err != nil {
				t.Fatal(err)
			}
			if len(deals) != tt.want {
				t.Fatalf("expected %d deals, got %d", tt.want, len(deals))
			}
		})
	}
}
