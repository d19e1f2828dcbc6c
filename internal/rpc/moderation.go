// Package rpc serves the admin moderation API over connect.
package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/pinnity/pinnity/internal/auth"
	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/model"
	"github.com/pinnity/pinnity/internal/service"
)

// ModerationServiceName is the fully-qualified name of the moderation service.
const ModerationServiceName = "pinnity.moderation.v1.ModerationService"

// Procedure paths.
const (
	ApproveDealProcedure         = "/" + ModerationServiceName + "/ApproveDeal"
	RejectDealProcedure          = "/" + ModerationServiceName + "/RejectDeal"
	RequestDealRevisionProcedure = "/" + ModerationServiceName + "/RequestDealRevision"
	VerifyBusinessProcedure      = "/" + ModerationServiceName + "/VerifyBusiness"
	RejectBusinessProcedure      = "/" + ModerationServiceName + "/RejectBusiness"
	ListPendingDealsProcedure    = "/" + ModerationServiceName + "/ListPendingDeals"
)

type DealDecisionRequest struct {
	DealID   string `json:"deal_id"`
	Feedback string `json:"feedback"`
}

type DealDecisionResponse struct {
	Deal *service.DealView `json:"deal"`
}

type BusinessDecisionRequest struct {
	BusinessID string `json:"business_id"`
	Feedback   string `json:"feedback"`
}

type BusinessDecisionResponse struct {
	Business *model.Business `json:"business"`
}

type ListPendingDealsRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type ListPendingDealsResponse struct {
	Deals []service.DealView `json:"deals"`
}

// ModerationServer implements the moderation procedures.
type ModerationServer struct {
	moderation *service.ModerationService
	logger     *slog.Logger
}

func NewModerationServer(moderation *service.ModerationService, logger *slog.Logger) *ModerationServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModerationServer{moderation: moderation, logger: logger}
}

type adminKey struct{}

func adminFrom(ctx context.Context) id.ID {
	v, _ := ctx.Value(adminKey{}).(id.ID)
	return v
}

// AdminInterceptor authenticates the bearer token and requires an admin.
// The user is reloaded so a revoked role takes effect at once.
func AdminInterceptor(tokens *auth.TokenManager, users *service.AuthService) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			token, ok := strings.CutPrefix(req.Header().Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("missing bearer token"))
			}
			claims, err := tokens.ValidateToken(token)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid token"))
			}
			userID, err := id.ParseUserID(claims.UserID)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid token subject"))
			}
			u, err := users.Me(ctx, userID)
			if err != nil {
				if service.IsNotFound(err) {
					return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("user no longer exists"))
				}
				return nil, toConnectError(err)
			}
			if !u.IsAdmin() {
				return nil, connect.NewError(connect.CodePermissionDenied, errors.New("admin role required"))
			}
			return next(context.WithValue(ctx, adminKey{}, u.ID), req)
		}
	}
}

// NewModerationHandler builds an HTTP handler for the moderation service,
// returning the path on which to mount it.
func NewModerationHandler(srv *ModerationServer, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec)}, opts...)

	mux := http.NewServeMux()
	mux.Handle(ApproveDealProcedure, connect.NewUnaryHandler(ApproveDealProcedure, srv.ApproveDeal, opts...))
	mux.Handle(RejectDealProcedure, connect.NewUnaryHandler(RejectDealProcedure, srv.RejectDeal, opts...))
	mux.Handle(RequestDealRevisionProcedure, connect.NewUnaryHandler(RequestDealRevisionProcedure, srv.RequestDealRevision, opts...))
	mux.Handle(VerifyBusinessProcedure, connect.NewUnaryHandler(VerifyBusinessProcedure, srv.VerifyBusiness, opts...))
	mux.Handle(RejectBusinessProcedure, connect.NewUnaryHandler(RejectBusinessProcedure, srv.RejectBusiness, opts...))
	mux.Handle(ListPendingDealsProcedure, connect.NewUnaryHandler(ListPendingDealsProcedure, srv.ListPendingDeals, opts...))
	return "/" + ModerationServiceName + "/", mux
}

type dealDecision func(ctx context.Context, adminID, dealID id.ID, feedback string) (*service.DealView, error)

func (s *ModerationServer) decideDeal(ctx context.Context, req *DealDecisionRequest, fn dealDecision) (*connect.Response[DealDecisionResponse], error) {
	dealID, err := id.ParseDealID(req.DealID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	d, err := fn(ctx, adminFrom(ctx), dealID, req.Feedback)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&DealDecisionResponse{Deal: d}), nil
}

func (s *ModerationServer) ApproveDeal(ctx context.Context, req *connect.Request[DealDecisionRequest]) (*connect.Response[DealDecisionResponse], error) {
	return s.decideDeal(ctx, req.Msg, s.moderation.ApproveDeal)
}

func (s *ModerationServer) RejectDeal(ctx context.Context, req *connect.Request[DealDecisionRequest]) (*connect.Response[DealDecisionResponse], error) {
	return s.decideDeal(ctx, req.Msg, s.moderation.RejectDeal)
}

func (s *ModerationServer) RequestDealRevision(ctx context.Context, req *connect.Request[DealDecisionRequest]) (*connect.Response[DealDecisionResponse], error) {
	return s.decideDeal(ctx, req.Msg, s.moderation.RequestRevision)
}

type businessDecision func(ctx context.Context, adminID, businessID id.ID, feedback string) (*model.Business, error)

func (s *ModerationServer) decideBusiness(ctx context.Context, req *BusinessDecisionRequest, fn businessDecision) (*connect.Response[BusinessDecisionResponse], error) {
	bizID, err := id.ParseBusinessID(req.BusinessID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	b, err := fn(ctx, adminFrom(ctx), bizID, req.Feedback)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&BusinessDecisionResponse{Business: b}), nil
}

func (s *ModerationServer) VerifyBusiness(ctx context.Context, req *connect.Request[BusinessDecisionRequest]) (*connect.Response[BusinessDecisionResponse], error) {
	return s.decideBusiness(ctx, req.Msg, s.moderation.VerifyBusiness)
}

func (s *ModerationServer) RejectBusiness(ctx context.Context, req *connect.Request[BusinessDecisionRequest]) (*connect.Response[BusinessDecisionResponse], error) {
	return s.decideBusiness(ctx, req.Msg, s.moderation.RejectBusiness)
}

func (s *ModerationServer) ListPendingDeals(ctx context.Context, req *connect.Request[ListPendingDealsRequest]) (*connect.Response[ListPendingDealsResponse], error) {
	deals, err := s.moderation.ListPendingDeals(ctx, service.Page{Limit: req.Msg.Limit, Offset: req.Msg.Offset})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list pending deals", "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListPendingDealsResponse{Deals: deals}), nil
}
