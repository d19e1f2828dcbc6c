package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pinnity/pinnity/internal/audit"
	"github.com/pinnity/pinnity/internal/auth"
	"github.com/pinnity/pinnity/internal/repository/memory"
	"github.com/pinnity/pinnity/internal/service"
	"github.com/pinnity/pinnity/internal/storage"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	auth   *service.AuthService
	images *storage.MemoryStore
}

func newTestServer(t *testing.T, rps float64) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := []service.Option{service.WithLogger(logger), service.WithAudit(audit.NewMemoryRecorder())}

	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	codes, err := service.NewCodeGenerator("test-secret")
	if err != nil {
		t.Fatal(err)
	}
	images := storage.NewMemoryStore("http://localhost:8080/images")

	authSvc := service.NewAuthService(store, auth.NewHasher(4), tokens, opts...)
	r := NewRouter(Deps{
		Store:          store,
		Tokens:         tokens,
		Logger:         logger,
		Auth:           authSvc,
		Businesses:     service.NewBusinessService(store, opts...),
		Deals:          service.NewDealService(store, codes, images, opts...),
		Moderation:     service.NewModerationService(store, opts...),
		Redemptions:    service.NewRedemptionService(store, service.RedemptionPolicy{EnforceLimits: true}, opts...),
		Favorites:      service.NewFavoriteService(store, opts...),
		Notifications:  service.NewNotificationService(store, opts...),
		Admin:          service.NewAdminService(store, opts...),
		Images:         images,
		CORSOrigins:    []string{"http://localhost:3000"},
		RateLimitRPS:   rps,
		RateLimitBurst: int(rps),
	})
	return &testServer{t: t, router: r, auth: authSvc, images: images}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			s.t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) expect(w *httptest.ResponseRecorder, status int, out any) {
	s.t.Helper()
	if w.Code != status {
		s.t.Fatalf("expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			s.t.Fatalf("decode response: %v", err)
		}
	}
}

type sessionResponse struct {
	Token string `json:"token"`
	User  struct {
		ID string `json:"id"`
	} `json:"user"`
	Business struct {
		ID string `json:"id"`
	} `json:"business"`
}

type dealResponse struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	EffectiveStatus string `json:"effective_status"`
	RedemptionCode  string `json:"redemption_code"`
	ImageURL        string `json:"image_url"`
}

func (s *testServer) adminToken() string {
	s.t.Helper()
	in := service.SignupInput{Email: "admin@example.com", Password: "password1"}
	if _, err := s.auth.CreateAdmin(context.Background(), in); err != nil {
		s.t.Fatal(err)
	}
	var sess sessionResponse
	s.expect(s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": in.Email, "password": in.Password}), http.StatusOK, &sess)
	return sess.Token
}

func (s *testServer) signup(email string) sessionResponse {
	s.t.Helper()
	var sess sessionResponse
	s.expect(s.do(http.MethodPost, "/api/v1/auth/signup", "", gin.H{"email": email, "password": "password1"}), http.StatusCreated, &sess)
	return sess
}

// liveVendor signs up a vendor, verifies it and publishes one deal.
func (s *testServer) liveVendor(admin string) (sessionResponse, dealResponse) {
	s.t.Helper()
	var vendor sessionResponse
	s.expect(s.do(http.MethodPost, "/api/v1/auth/signup/business", "", gin.H{
		"email":    "vendor@example.com",
		"password": "password1",
		"business": gin.H{"business_name": "Corner Cafe", "category": "food_drink"},
	}), http.StatusCreated, &vendor)

	s.expect(s.do(http.MethodPost, "/api/v1/admin/businesses/"+vendor.Business.ID+"/verify", admin, nil), http.StatusOK, nil)

	now := time.Now().UTC()
	var deal dealResponse
	s.expect(s.do(http.MethodPost, "/api/v1/vendor/deals", vendor.Token, gin.H{
		"title":                    "Two coffees for one",
		"category":                 "food_drink",
		"original_price":           8,
		"discounted_price":         4,
		"start_date":               now.Add(-time.Hour),
		"end_date":                 now.Add(48 * time.Hour),
		"max_redemptions_per_user": 1,
		"submit":                   true,
	}), http.StatusCreated, &deal)
	if deal.Status != "pending" {
		s.t.Fatalf("expected pending deal, got %s", deal.Status)
	}

	s.expect(s.do(http.MethodPost, "/api/v1/admin/deals/"+deal.ID+"/approve", admin, gin.H{"feedback": "ok"}), http.StatusOK, nil)
	return vendor, deal
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, 0)

	for _, path := range []string{"/health", "/health/db"} {
		w := s.do(http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
	}
	if w := s.do(http.MethodGet, "/health", "", nil); w.Header().Get(requestIDHeader) == "" {
		t.Error("expected a request id header")
	}
}

func TestMarketplaceFlow(t *testing.T) {
	s := newTestServer(t, 0)
	admin := s.adminToken()
	vendor, deal := s.liveVendor(admin)
	customer := s.signup("customer@example.com")

	for _, prefix := range []string{"/api/v1", "/api"} {
		var list struct {
			Deals []dealResponse `json:"deals"`
		}
		s.expect(s.do(http.MethodGet, prefix+"/deals", "", nil), http.StatusOK, &list)
		if len(list.Deals) != 1 || list.Deals[0].EffectiveStatus != "approved" {
			t.Fatalf("%s/deals: expected one approved deal, got %+v", prefix, list.Deals)
		}
		if list.Deals[0].RedemptionCode != "" {
			t.Errorf("%s/deals: redemption code leaked to the public list", prefix)
		}
	}

	s.expect(s.do(http.MethodPost, "/api/v1/deals/"+deal.ID+"/favorite", customer.Token, nil), http.StatusCreated, nil)
	s.expect(s.do(http.MethodPost, "/api/v1/deals/"+deal.ID+"/favorite", customer.Token, nil), http.StatusOK, nil)

	var receipt struct {
		ID             string `json:"id"`
		RedemptionCode string `json:"redemption_code"`
	}
	s.expect(s.do(http.MethodPost, "/api/v1/deals/"+deal.ID+"/redeem", customer.Token, nil), http.StatusCreated, &receipt)

	var apiErr errorResponse
	s.expect(s.do(http.MethodPost, "/api/v1/deals/"+deal.ID+"/redeem", customer.Token, nil), http.StatusUnprocessableEntity, &apiErr)
	if apiErr.Error != "redemption_limit_reached" {
		t.Errorf("expected redemption_limit_reached, got %q", apiErr.Error)
	}

	s.expect(s.do(http.MethodPost, "/api/v1/vendor/redemptions/"+receipt.ID+"/complete", vendor.Token, gin.H{"code": "BADCODE123"}), http.StatusUnprocessableEntity, nil)
	s.expect(s.do(http.MethodPost, "/api/v1/vendor/redemptions/"+receipt.ID+"/complete", vendor.Token, gin.H{"code": receipt.RedemptionCode}), http.StatusOK, nil)
	s.expect(s.do(http.MethodPost, "/api/v1/redemptions/"+receipt.ID+"/rating", customer.Token, gin.H{"rating": 5, "anonymous": true}), http.StatusCreated, nil)
	s.expect(s.do(http.MethodPost, "/api/v1/redemptions/"+receipt.ID+"/rating", customer.Token, gin.H{"rating": 4}), http.StatusConflict, nil)

	var ratings struct {
		Ratings []struct {
			Rating int    `json:"rating"`
			UserID string `json:"user_id"`
		} `json:"ratings"`
	}
	s.expect(s.do(http.MethodGet, "/api/v1/deals/"+deal.ID+"/ratings", "", nil), http.StatusOK, &ratings)
	if len(ratings.Ratings) != 1 || ratings.Ratings[0].UserID != "" {
		t.Errorf("expected one anonymous rating, got %+v", ratings.Ratings)
	}

	var notes struct {
		Notifications []struct {
			ID   string `json:"id"`
			Kind string `json:"kind"`
		} `json:"notifications"`
	}
	s.expect(s.do(http.MethodGet, "/api/v1/me/notifications?unread=true", vendor.Token, nil), http.StatusOK, &notes)
	if len(notes.Notifications) != 2 {
		t.Fatalf("expected business and deal notifications, got %+v", notes.Notifications)
	}
	s.expect(s.do(http.MethodPost, "/api/v1/me/notifications/"+notes.Notifications[0].ID+"/read", vendor.Token, nil), http.StatusNoContent, nil)

	var stats struct {
		Redemptions int `json:"redemptions"`
	}
	s.expect(s.do(http.MethodGet, "/api/v1/admin/stats", admin, nil), http.StatusOK, &stats)
	if stats.Redemptions != 1 {
		t.Errorf("expected 1 redemption in stats, got %d", stats.Redemptions)
	}

	var trail struct {
		Events []audit.Event `json:"events"`
	}
	s.expect(s.do(http.MethodGet, "/api/v1/admin/audit?resource_id="+deal.ID, admin, nil), http.StatusOK, &trail)
	if len(trail.Events) == 0 {
		t.Error("expected audit events for the deal")
	}
}

func TestModerationEndpoints(t *testing.T) {
	s := newTestServer(t, 0)
	admin := s.adminToken()
	vendor, _ := s.liveVendor(admin)

	now := time.Now().UTC()
	var deal dealResponse
	s.expect(s.do(http.MethodPost, "/api/v1/vendor/deals", vendor.Token, gin.H{
		"title": "Free dessert", "category": "food_drink",
		"start_date": now, "end_date": now.Add(24 * time.Hour), "submit": true,
	}), http.StatusCreated, &deal)

	var apiErr errorResponse
	s.expect(s.do(http.MethodPost, "/api/v1/admin/deals/"+deal.ID+"/reject", admin, nil), http.StatusBadRequest, &apiErr)
	if apiErr.Field != "reason" {
		t.Errorf("expected reason field error, got %+v", apiErr)
	}

	s.expect(s.do(http.MethodPost, "/api/v1/admin/deals/"+deal.ID+"/request-revision", admin, gin.H{"notes": "Add terms"}), http.StatusOK, nil)
	s.expect(s.do(http.MethodPut, "/api/v1/vendor/deals/"+deal.ID, vendor.Token, gin.H{
		"title": "Free dessert with any main", "category": "food_drink",
		"start_date": now, "end_date": now.Add(24 * time.Hour), "terms": "Dine in only",
	}), http.StatusOK, nil)

	var resubmitted struct {
		Status   string `json:"status"`
		Approval struct {
			RevisionCount int `json:"revision_count"`
		} `json:"approval"`
	}
	s.expect(s.do(http.MethodPost, "/api/v1/vendor/deals/"+deal.ID+"/resubmit", vendor.Token, nil), http.StatusOK, &resubmitted)
	if resubmitted.Status != "pending" || resubmitted.Approval.RevisionCount != 1 {
		t.Errorf("unexpected resubmit result %+v", resubmitted)
	}
	s.expect(s.do(http.MethodPost, "/api/v1/vendor/deals/"+deal.ID+"/resubmit", vendor.Token, nil), http.StatusConflict, &apiErr)
	if apiErr.Error != "invalid_transition" {
		t.Errorf("expected invalid_transition, got %q", apiErr.Error)
	}

	var pending struct {
		Deals []dealResponse `json:"deals"`
	}
	s.expect(s.do(http.MethodGet, "/api/v1/admin/deals?status=pending", admin, nil), http.StatusOK, &pending)
	if len(pending.Deals) != 1 {
		t.Errorf("expected one pending deal, got %d", len(pending.Deals))
	}
	s.expect(s.do(http.MethodGet, "/api/v1/admin/deals?status=bogus", admin, nil), http.StatusBadRequest, nil)
	s.expect(s.do(http.MethodDelete, "/api/v1/admin/deals/"+deal.ID, admin, nil), http.StatusNoContent, nil)
	s.expect(s.do(http.MethodGet, "/api/v1/admin/deals/"+deal.ID, admin, nil), http.StatusNotFound, nil)
}

func TestAuthAndRoles(t *testing.T) {
	s := newTestServer(t, 0)
	admin := s.adminToken()
	customer := s.signup("customer@example.com")

	s.expect(s.do(http.MethodGet, "/api/v1/me", "", nil), http.StatusUnauthorized, nil)
	s.expect(s.do(http.MethodGet, "/api/v1/me", "not-a-token", nil), http.StatusUnauthorized, nil)
	s.expect(s.do(http.MethodGet, "/api/v1/vendor/deals", customer.Token, nil), http.StatusForbidden, nil)
	s.expect(s.do(http.MethodGet, "/api/v1/admin/stats", customer.Token, nil), http.StatusForbidden, nil)
	s.expect(s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "customer@example.com", "password": "nope12345"}), http.StatusUnauthorized, nil)
	s.expect(s.do(http.MethodPost, "/api/v1/auth/signup", "", gin.H{"email": "customer@example.com", "password": "password1"}), http.StatusConflict, nil)

	// Role changes apply to existing tokens on the next request.
	s.expect(s.do(http.MethodPut, "/api/v1/admin/users/"+customer.User.ID+"/type", admin, gin.H{"user_type": "business"}), http.StatusOK, nil)
	s.expect(s.do(http.MethodGet, "/api/v1/vendor/business", customer.Token, nil), http.StatusNotFound, nil)
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for x := 0; x < 40; x++ {
		for y := 0; y < 30; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 8), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestUploadDealImage(t *testing.T) {
	s := newTestServer(t, 0)
	admin := s.adminToken()
	vendor, _ := s.liveVendor(admin)

	now := time.Now().UTC()
	var draft dealResponse
	s.expect(s.do(http.MethodPost, "/api/v1/vendor/deals", vendor.Token, gin.H{
		"title": "Draft deal", "category": "retail", "start_date": now, "end_date": now.Add(time.Hour),
	}), http.StatusCreated, &draft)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "photo.png")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(testPNG(t))
	for k, v := range map[string]string{"crop_x": "5", "crop_y": "5", "crop_width": "20", "crop_height": "10", "rotation": "90"} {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/vendor/deals/"+draft.ID+"/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+vendor.Token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out struct {
		Deal  dealResponse `json:"deal"`
		Image struct {
			Width    int `json:"width"`
			Height   int `json:"height"`
			Attempts int `json:"attempts"`
		} `json:"image"`
	}
	s.expect(w, http.StatusOK, &out)
	if out.Image.Width != 20 || out.Image.Height != 10 || out.Image.Attempts != 1 {
		t.Errorf("unexpected image result %+v", out.Image)
	}

	path := strings.TrimPrefix(out.Deal.ImageURL, "http://localhost:8080")
	img := s.do(http.MethodGet, path, "", nil)
	if img.Code != http.StatusOK || img.Header().Get("Content-Type") != "image/jpeg" {
		t.Errorf("expected stored jpeg at %s, got %d %q", path, img.Code, img.Header().Get("Content-Type"))
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, 1)

	s.expect(s.do(http.MethodGet, "/api/v1/categories", "", nil), http.StatusOK, nil)
	s.expect(s.do(http.MethodGet, "/api/v1/categories", "", nil), http.StatusTooManyRequests, nil)
}

func TestBadIDs(t *testing.T) {
	s := newTestServer(t, 0)

	tests := []string{"/api/v1/deals/not-an-id", fmt.Sprintf("/api/v1/deals/%s", "user_01h455vb4pex5vsknk084sn02q")}
	for _, path := range tests {
		s.expect(s.do(http.MethodGet, path, "", nil), http.StatusBadRequest, nil)
	}
}
