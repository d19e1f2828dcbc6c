package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pinnity/pinnity/internal/audit"
	"github.com/pinnity/pinnity/internal/auth"
	"github.com/pinnity/pinnity/internal/model"
	"github.com/pinnity/pinnity/internal/repository/memory"
	"github.com/pinnity/pinnity/internal/storage"
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	now    time.Time
	store  *memory.Store
	trail  *audit.MemoryRecorder
	images *storage.MemoryStore

	auth   *AuthService
	biz    *BusinessService
	deals  *DealService
	mod    *ModerationService
	redeem *RedemptionService
	favs   *FavoriteService
	notes  *NotificationService
	admin  *AdminService
	repair *RepairService

	seq int
}

func newFixture(t *testing.T, policy RedemptionPolicy) *fixture {
	t.Helper()

	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		store:  memory.New(),
		trail:  audit.NewMemoryRecorder(),
		images: storage.NewMemoryStore("http://localhost:8080/images"),
	}
	opts := []Option{WithAudit(f.trail), WithClock(func() time.Time { return f.now })}

	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	codes, err := NewCodeGenerator("test-secret")
	if err != nil {
		t.Fatal(err)
	}

	f.auth = NewAuthService(f.store, auth.NewHasher(4), tokens, opts...)
	f.biz = NewBusinessService(f.store, opts...)
	f.deals = NewDealService(f.store, codes, f.images, opts...)
	f.mod = NewModerationService(f.store, opts...)
	f.redeem = NewRedemptionService(f.store, policy, opts...)
	f.favs = NewFavoriteService(f.store, opts...)
	f.notes = NewNotificationService(f.store, opts...)
	f.admin = NewAdminService(f.store, opts...)
	f.repair = NewRepairService(f.store, 0, opts...)
	return f
}

func (f *fixture) signupInput() SignupInput {
	f.seq++
	return SignupInput{
		Email:     fmt.Sprintf("user%d@example.com", f.seq),
		Password:  "password1",
		FirstName: "Test",
		LastName:  fmt.Sprintf("User%d", f.seq),
	}
}

func (f *fixture) admin0() *model.User {
	f.t.Helper()
	u, err := f.auth.CreateAdmin(f.ctx, f.signupInput())
	if err != nil {
		f.t.Fatalf("create admin: %v", err)
	}
	return u
}

func (f *fixture) customer() *model.User {
	f.t.Helper()
	s, err := f.auth.Signup(f.ctx, f.signupInput())
	if err != nil {
		f.t.Fatalf("signup: %v", err)
	}
	return s.User
}

// vendor signs up a business and, when verified is set, has admin approve it.
func (f *fixture) vendor(admin *model.User, verified bool) (*model.User, *model.Business) {
	f.t.Helper()
	s, err := f.auth.SignupBusiness(f.ctx, f.signupInput(), BusinessInput{BusinessName: "Corner Cafe", Category: "food_drink"})
	if err != nil {
		f.t.Fatalf("signup business: %v", err)
	}
	b := s.Business
	if verified {
		b, err = f.mod.VerifyBusiness(f.ctx, admin.ID, b.ID, "")
		if err != nil {
			f.t.Fatalf("verify business: %v", err)
		}
	}
	return s.User, b
}

func (f *fixture) dealInput(mut func(*DealInput)) DealInput {
	in := DealInput{
		Title:           "Two coffees for one",
		Description:     "Any size",
		Category:        "food_drink",
		OriginalPrice:   8,
		DiscountedPrice: 4,
		StartDate:       f.now.Add(-time.Hour),
		EndDate:         f.now.Add(48 * time.Hour),
		Submit:          true,
	}
	if mut != nil {
		mut(&in)
	}
	return in
}

// liveDeal creates, submits and approves a deal.
func (f *fixture) liveDeal(admin, vendor *model.User, mut func(*DealInput)) *DealView {
	f.t.Helper()
	v, err := f.deals.Create(f.ctx, vendor.ID, f.dealInput(mut))
	if err != nil {
		f.t.Fatalf("create deal: %v", err)
	}
	v, err = f.mod.ApproveDeal(f.ctx, admin.ID, v.ID, "")
	if err != nil {
		f.t.Fatalf("approve deal: %v", err)
	}
	return v
}

func intPtr(n int) *int { return &n }
