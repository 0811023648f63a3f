package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestContextMiddleware(t *testing.T) {
	var seen string
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		seen = RequestID(ctx)
		return nil, nil
	}

	_, err := ContextMiddleware(context.Background(), "req", info(readMethod), handler)
	require.NoError(t, err)
	assert.Len(t, seen, 36, "generated uuid")

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDHeader, "abc-123"))
	_, err = ContextMiddleware(ctx, "req", info(readMethod), handler)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", seen, "caller supplied id is kept")

	assert.Empty(t, RequestID(context.Background()))
}

func TestRateLimitingInterceptor(t *testing.T) {
	interceptor := NewRateLimitingInterceptor(0.001, 2)
	h := &countingHandler{}

	for i := 0; i < 2; i++ {
		_, err := interceptor(context.Background(), "a", info(readMethod), h.handle)
		require.NoError(t, err)
	}
	_, err := interceptor(context.Background(), "a", info(readMethod), h.handle)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
	assert.Equal(t, 2, h.calls)
}

func TestLoggingInterceptor(t *testing.T) {
	logger, hook := test.NewNullLogger()
	interceptor := NewLoggingInterceptor(logger)
	ctx := WithRequestID(context.Background(), "req-1")

	_, err := interceptor(ctx, "a", info(readMethod), (&countingHandler{}).handle)
	require.NoError(t, err)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "req-1", entry.Data["request_id"])
	assert.Equal(t, readMethod, entry.Data["method"])
	assert.Equal(t, "OK", entry.Data["code"])

	_, err = interceptor(ctx, "fail", info(readMethod), (&countingHandler{}).handle)
	require.Error(t, err)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "Unknown", hook.LastEntry().Data["code"])
}

func TestMetricsInterceptor(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	interceptor := m.Interceptor()

	_, _ = interceptor(context.Background(), "a", info(readMethod), (&countingHandler{}).handle)
	_, _ = interceptor(context.Background(), "a", info(readMethod), (&countingHandler{}).handle)
	_, _ = interceptor(context.Background(), "a", info(readMethod), func(context.Context, interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "nope")
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("Read", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("Read", "NotFound")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Latency))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "double registration")
	assert.True(t, errors.As(err, new(prometheus.AlreadyRegisteredError)))
}
