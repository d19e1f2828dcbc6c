package rpc

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/pinnity/pinnity/internal/service"
)

// toConnectError maps service errors onto connect codes.
func toConnectError(err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidRedemptionCode):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrInvalidCredentials):
		return connect.NewError(connect.CodeUnauthenticated, err)
	case errors.Is(err, service.ErrForbidden):
		return connect.NewError(connect.CodePermissionDenied, err)
	case service.IsNotFound(err):
		return connect.NewError(connect.CodeNotFound, err)
	case service.IsConflict(err):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case service.IsPrecondition(err), errors.Is(err, service.ErrDealNotRedeemable):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, service.ErrRedemptionLimitReached), errors.Is(err, service.ErrDealSoldOut):
		return connect.NewError(connect.CodeResourceExhausted, err)
	}
	return connect.NewError(connect.CodeInternal, errors.New("internal error"))
}
