package server

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pb-coding/voltvector-be/internal/database"
	"github.com/pb-coding/voltvector-be/internal/enphase"
	"github.com/pb-coding/voltvector-be/internal/ingestion"
	"github.com/pb-coding/voltvector-be/internal/meross"
	"github.com/pb-coding/voltvector-be/internal/smarthome"
)

var errorCodes = []struct {
	target error
	code   codes.Code
}{
	{ErrInvalidArgument, codes.InvalidArgument},
	{meross.ErrMissingCredentials, codes.InvalidArgument},
	{smarthome.ErrUnknownProvider, codes.InvalidArgument},
	{meross.ErrAuthenticationFailed, codes.Unauthenticated},
	{meross.ErrNotAuthenticated, codes.Unauthenticated},
	{meross.ErrTimeout, codes.DeadlineExceeded},
	{context.DeadlineExceeded, codes.DeadlineExceeded},
	{context.Canceled, codes.Canceled},
	{meross.ErrNoDataConnection, codes.Unavailable},
	{enphase.ErrUpstreamRateLimitOrTransient, codes.Unavailable},
	{ingestion.ErrFetchExhausted, codes.Unavailable},
	{meross.ErrUnknownDevice, codes.NotFound},
	{smarthome.ErrNoCredentials, codes.NotFound},
	{database.ErrNotFound, codes.NotFound},
	{ingestion.ErrUnknownUser, codes.NotFound},
	{enphase.ErrUnknownApp, codes.NotFound},
	{ingestion.ErrInsufficientCredentials, codes.FailedPrecondition},
	{enphase.ErrUpstreamStatus, codes.FailedPrecondition},
	{ingestion.ErrRunInProgress, codes.Aborted},
}

// toStatus maps a domain error to a gRPC status. Unknown errors become
// Internal without leaking their text.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, database.ErrPersistenceConflict) {
		return status.Error(codes.AlreadyExists, "already in use")
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.target) {
			return status.Error(c.code, err.Error())
		}
	}
	return status.Error(codes.Internal, "internal error")
}
