package rpc

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/pinnity/pinnity/internal/auth"
	"github.com/pinnity/pinnity/internal/model"
	"github.com/pinnity/pinnity/internal/repository/memory"
	"github.com/pinnity/pinnity/internal/service"
	"github.com/pinnity/pinnity/internal/storage"
)

type rpcFixture struct {
	ctx    context.Context
	url    string
	client *http.Client
	auth   *service.AuthService
	deals  *service.DealService
	notes  *service.NotificationService
}

func newRPCFixture(t *testing.T) *rpcFixture {
	t.Helper()

	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	codes, err := service.NewCodeGenerator("test-secret")
	if err != nil {
		t.Fatal(err)
	}

	authSvc := service.NewAuthService(store, auth.NewHasher(4), tokens)
	mod := service.NewModerationService(store, service.WithLogger(logger))

	mux := http.NewServeMux()
	path, handler := NewModerationHandler(NewModerationServer(mod, logger),
		connect.WithInterceptors(AdminInterceptor(tokens, authSvc)))
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &rpcFixture{
		ctx:    context.Background(),
		url:    srv.URL,
		client: srv.Client(),
		auth:   authSvc,
		deals:  service.NewDealService(store, codes, storage.NewMemoryStore("")),
		notes:  service.NewNotificationService(store),
	}
}

func (f *rpcFixture) token(t *testing.T, admin bool, email string) string {
	t.Helper()
	in := service.SignupInput{Email: email, Password: "password1"}
	if admin {
		if _, err := f.auth.CreateAdmin(f.ctx, in); err != nil {
			t.Fatal(err)
		}
	} else if _, err := f.auth.Signup(f.ctx, in); err != nil {
		t.Fatal(err)
	}
	s, err := f.auth.Login(f.ctx, email, in.Password)
	if err != nil {
		t.Fatal(err)
	}
	return s.Token
}

func call[Req, Res any](t *testing.T, f *rpcFixture, procedure, token string, msg *Req) (*Res, error) {
	t.Helper()
	client := connect.NewClient[Req, Res](f.client, f.url+procedure, connect.WithCodec(Codec))
	req := connect.NewRequest(msg)
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	res, err := client.CallUnary(f.ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func TestModerationRequiresAdmin(t *testing.T) {
	f := newRPCFixture(t)
	customer := f.token(t, false, "customer@example.com")

	tests := []struct {
		name  string
		token string
		code  connect.Code
	}{
		{"no token", "", connect.CodeUnauthenticated},
		{"garbage token", "not-a-jwt", connect.CodeUnauthenticated},
		{"customer", customer, connect.CodePermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call[ListPendingDealsRequest, ListPendingDealsResponse](t, f, ListPendingDealsProcedure, tt.token, &ListPendingDealsRequest{})
			if got := connect.CodeOf(err); got != tt.code {
				t.Fatalf("expected %v, got %v (%v)", tt.code, got, err)
			}
		})
	}
}

func TestModerationFlow(t *testing.T) {
	f := newRPCFixture(t)
	admin := f.token(t, true, "admin@example.com")

	vendor, err := f.auth.SignupBusiness(f.ctx,
		service.SignupInput{Email: "vendor@example.com", Password: "password1"},
		service.BusinessInput{BusinessName: "Corner Cafe", Category: "food_drink"})
	if err != nil {
		t.Fatal(err)
	}

	biz, err := call[BusinessDecisionRequest, BusinessDecisionResponse](t, f, VerifyBusinessProcedure, admin,
		&BusinessDecisionRequest{BusinessID: vendor.Business.ID.String()})
	if err != nil {
		t.Fatalf("verify business: %v", err)
	}
	if biz.Business.VerificationStatus != model.VerificationApproved {
		t.Fatalf("expected approved business, got %s", biz.Business.VerificationStatus)
	}

	now := time.Now()
	deal, err := f.deals.Create(f.ctx, vendor.User.ID, service.DealInput{
		Title:           "Two coffees for one",
		Category:        "food_drink",
		OriginalPrice:   8,
		DiscountedPrice: 4,
		StartDate:       now.Add(-time.Hour),
		EndDate:         now.Add(48 * time.Hour),
		Submit:          true,
	})
	if err != nil {
		t.Fatal(err)
	}

	pending, err := call[ListPendingDealsRequest, ListPendingDealsResponse](t, f, ListPendingDealsProcedure, admin, &ListPendingDealsRequest{})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending.Deals) != 1 || pending.Deals[0].ID != deal.ID {
		t.Fatalf("expected the submitted deal in the queue, got %d deals", len(pending.Deals))
	}

	_, err = call[DealDecisionRequest, DealDecisionResponse](t, f, RejectDealProcedure, admin, &DealDecisionRequest{DealID: deal.ID.String()})
	if got := connect.CodeOf(err); got != connect.CodeInvalidArgument {
		t.Fatalf("reject without reason: expected invalid argument, got %v", got)
	}

	rev, err := call[DealDecisionRequest, DealDecisionResponse](t, f, RequestDealRevisionProcedure, admin,
		&DealDecisionRequest{DealID: deal.ID.String(), Feedback: "add terms"})
	if err != nil {
		t.Fatalf("request revision: %v", err)
	}
	if rev.Deal.Status != model.DealStatusPendingRevision {
		t.Fatalf("expected pending_revision, got %s", rev.Deal.Status)
	}

	_, err = call[DealDecisionRequest, DealDecisionResponse](t, f, ApproveDealProcedure, admin, &DealDecisionRequest{DealID: deal.ID.String()})
	if got := connect.CodeOf(err); got != connect.CodeFailedPrecondition {
		t.Fatalf("approve from pending_revision: expected failed precondition, got %v", got)
	}

	if _, err := f.deals.Resubmit(f.ctx, vendor.User.ID, deal.ID); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	approved, err := call[DealDecisionRequest, DealDecisionResponse](t, f, ApproveDealProcedure, admin,
		&DealDecisionRequest{DealID: deal.ID.String(), Feedback: "looks good"})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Deal.Status != model.DealStatusApproved || approved.Deal.Approval == nil {
		t.Fatalf("expected approved deal with approval record, got %+v", approved.Deal)
	}
	if approved.Deal.Approval.Feedback != "looks good" {
		t.Errorf("expected feedback to be stored, got %q", approved.Deal.Approval.Feedback)
	}

	notes, err := f.notes.List(f.ctx, vendor.User.ID, true, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) == 0 {
		t.Error("expected the vendor to be notified")
	}
}

func TestModerationErrors(t *testing.T) {
	f := newRPCFixture(t)
	admin := f.token(t, true, "admin@example.com")

	_, err := call[DealDecisionRequest, DealDecisionResponse](t, f, ApproveDealProcedure, admin, &DealDecisionRequest{DealID: "bogus"})
	if got := connect.CodeOf(err); got != connect.CodeInvalidArgument {
		t.Errorf("bad id: expected invalid argument, got %v", got)
	}

	_, err = call[BusinessDecisionRequest, BusinessDecisionResponse](t, f, RejectBusinessProcedure, admin,
		&BusinessDecisionRequest{BusinessID: "biz_01h455vb4pex5vsknk084sn02q", Feedback: "no"})
	if got := connect.CodeOf(err); got != connect.CodeNotFound {
		t.Errorf("unknown business: expected not found, got %v", got)
	}
}
