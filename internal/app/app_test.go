package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pinnity/pinnity/internal/audit"
	"github.com/pinnity/pinnity/internal/config"
	"github.com/pinnity/pinnity/internal/model"
	"github.com/pinnity/pinnity/internal/repository/memory"
	"github.com/pinnity/pinnity/internal/rpc"
	"github.com/pinnity/pinnity/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		App:        config.AppConfig{Environment: "test", LogLevel: "debug"},
		Auth:       config.AuthConfig{TokenTTL: time.Hour, BcryptCost: 4},
		Storage:    config.StorageConfig{Driver: "memory", PublicBaseURL: "http://localhost:8080/images", MaxUploadMB: 1},
		Audit:      config.AuditConfig{Driver: "none"},
		RateLimit:  config.RateLimitConfig{RPS: 100, Burst: 100},
		Redemption: config.RedemptionConfig{EnforceLimits: true, CodeSecret: "test"},
	}
}

func TestNewWithStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	a, err := NewWithStore(ctx, testConfig(), logger, memory.New())
	if err != nil {
		t.Fatalf("NewWithStore: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(ctx) })

	if _, ok := a.Audit.(audit.RecorderFunc); !ok {
		t.Errorf("expected the none audit driver to be a no-op func, got %T", a.Audit)
	}
	if _, ok := a.Images.(*storage.MemoryStore); !ok {
		t.Errorf("expected memory image store, got %T", a.Images)
	}

	h := a.Handler()

	t.Run("rest health", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})

	t.Run("rpc requires auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, rpc.ListPendingDealsProcedure, strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestNewWithStoreRejectsUnknownStorage(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Driver = "ftp"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, err := NewWithStore(context.Background(), cfg, logger, memory.New()); err == nil {
		t.Fatal("expected error for unknown storage driver")
	}
}

func TestSeed(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	a, err := NewWithStore(ctx, testConfig(), logger, memory.New())
	if err != nil {
		t.Fatal(err)
	}
	sc := SeedConfig{
		AdminEmail:    "admin@example.com",
		VendorEmail:   "vendor@example.com",
		CustomerEmail: "customer@example.com",
		Password:      "password1",
	}

	res, err := a.Seed(ctx, sc)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if !res.Business.IsVerified() {
		t.Error("expected the seeded business to be verified")
	}

	want := []model.DealStatus{
		model.DealStatusApproved,
		model.DealStatusPending,
		model.DealStatusPendingRevision,
		model.DealStatusDraft,
	}
	if len(res.Deals) != len(want) {
		t.Fatalf("expected %d deals, got %d", len(want), len(res.Deals))
	}
	for i, d := range res.Deals {
		if d.Status != want[i] {
			t.Errorf("deal %d: expected %s, got %s", i, want[i], d.Status)
		}
	}

	if _, err := a.Seed(ctx, sc); !errors.Is(err, ErrAlreadySeeded) {
		t.Fatalf("expected ErrAlreadySeeded on second run, got %v", err)
	}
}
