package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pinnity/pinnity/internal/model"
	"github.com/pinnity/pinnity/internal/service"
)

// SeedConfig holds the demo account settings for the seed command.
type SeedConfig struct {
	AdminEmail    string `env:"SEED_ADMIN_EMAIL,default=admin@pinnity.local"`
	VendorEmail   string `env:"SEED_VENDOR_EMAIL,default=vendor@pinnity.local"`
	CustomerEmail string `env:"SEED_CUSTOMER_EMAIL,default=customer@pinnity.local"`
	Password      string `env:"SEED_PASSWORD,default=pinnity123"`
}

// SeedResult lists what Seed created.
type SeedResult struct {
	Admin    *model.User       `json:"admin"`
	Vendor   *model.User       `json:"vendor"`
	Business *model.Business   `json:"business"`
	Customer *model.User       `json:"customer"`
	Deals    []service.DealView `json:"deals"`
}

// ErrAlreadySeeded is returned when the admin account already exists.
var ErrAlreadySeeded = errors.New("database already seeded")

// Seed creates demo accounts and one deal in each review state through
// the regular services, so every row passes the same validation as
// production traffic.
func (a *App) Seed(ctx context.Context, sc SeedConfig) (*SeedResult, error) {
	admin, err := a.Auth.CreateAdmin(ctx, service.SignupInput{
		Email: sc.AdminEmail, Password: sc.Password, Username: "admin", FirstName: "Pinnity", LastName: "Admin",
	})
	if errors.Is(err, service.ErrEmailTaken) {
		return nil, ErrAlreadySeeded
	}
	if err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	res := &SeedResult{Admin: admin}

	vendor, err := a.Auth.SignupBusiness(ctx,
		service.SignupInput{Email: sc.VendorEmail, Password: sc.Password, Username: "cornercafe", FirstName: "Sam", LastName: "Vendor"},
		service.BusinessInput{
			BusinessName: "Corner Cafe",
			Category:     "food_drink",
			Description:  "Coffee and pastries",
			Address:      "1 Main Street",
		})
	if err != nil {
		return nil, fmt.Errorf("seed vendor: %w", err)
	}
	res.Vendor = vendor.User
	res.Business, err = a.Moderation.VerifyBusiness(ctx, admin.ID, vendor.Business.ID, "demo account")
	if err != nil {
		return nil, fmt.Errorf("seed verify business: %w", err)
	}

	customer, err := a.Auth.Signup(ctx, service.SignupInput{
		Email: sc.CustomerEmail, Password: sc.Password, Username: "customer", FirstName: "Alex", LastName: "Customer",
	})
	if err != nil {
		return nil, fmt.Errorf("seed customer: %w", err)
	}
	res.Customer = customer.User

	now := time.Now()
	deal := func(title string, submit bool) service.DealInput {
		return service.DealInput{
			Title:                 title,
			Description:           "Demo deal",
			Category:              "food_drink",
			OriginalPrice:         10,
			DiscountedPrice:       6,
			StartDate:             now.Add(-time.Hour),
			EndDate:               now.AddDate(0, 1, 0),
			TotalRedemptionsLimit: 100,
			Submit:                submit,
		}
	}

	steps := []struct {
		title  string
		submit bool
		review func(context.Context, *service.DealView) (*service.DealView, error)
	}{
		{"Two coffees for one", true, func(ctx context.Context, d *service.DealView) (*service.DealView, error) {
			return a.Moderation.ApproveDeal(ctx, admin.ID, d.ID, "")
		}},
		{"Half price pastries", true, nil},
		{"Free cookie with any drink", true, func(ctx context.Context, d *service.DealView) (*service.DealView, error) {
			return a.Moderation.RequestRevision(ctx, admin.ID, d.ID, "Please add the terms")
		}},
		{"Weekend brunch special", false, nil},
	}
	for _, st := range steps {
		d, err := a.Deals.Create(ctx, vendor.User.ID, deal(st.title, st.submit))
		if err != nil {
			return nil, fmt.Errorf("seed deal %q: %w", st.title, err)
		}
		if st.review != nil {
			if d, err = st.review(ctx, d); err != nil {
				return nil, fmt.Errorf("seed review %q: %w", st.title, err)
			}
		}
		res.Deals = append(res.Deals, *d)
	}

	if _, err := a.Favorites.Add(ctx, customer.User.ID, res.Deals[0].ID); err != nil {
		return nil, fmt.Errorf("seed favorite: %w", err)
	}
	return res, nil
}
