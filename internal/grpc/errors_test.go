package server

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pb-coding/voltvector-be/internal/database"
	"github.com/pb-coding/voltvector-be/internal/enphase"
	"github.com/pb-coding/voltvector-be/internal/ingestion"
)

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("%w: energy_intervals_user_id_end_date_key", database.ErrPersistenceConflict), codes.AlreadyExists},
		{database.ErrNotFound, codes.NotFound},
		{fmt.Errorf("run user 4: %w", ingestion.ErrInsufficientCredentials), codes.FailedPrecondition},
		{ingestion.ErrRunInProgress, codes.Aborted},
		{fmt.Errorf("%w: 3 attempts", ingestion.ErrFetchExhausted), codes.Unavailable},
		{enphase.ErrUpstreamRateLimitOrTransient, codes.Unavailable},
		{enphase.ErrUnknownApp, codes.NotFound},
		{context.Canceled, codes.Canceled},
		{status.Error(codes.PermissionDenied, "nope"), codes.PermissionDenied},
		{errors.New("disk on fire"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.code, status.Code(toStatus(tt.err)))
		})
	}

	assert.NoError(t, toStatus(nil))
	assert.Equal(t, "internal error", status.Convert(toStatus(errors.New("secret dsn"))).Message())
}
