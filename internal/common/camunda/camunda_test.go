package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"dynamic-forms/internal/common/errors"
	"dynamic-forms/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func testClient() *Client {
	return &Client{
		requestTimeout: time.Second,
		backoff:        Backoff{Retries: 2, Base: time.Millisecond, Max: 5 * time.Millisecond},
	}
}

func TestClientDo(t *testing.T) {
	ctx := context.Background()

	t.Run("retries transient failures", func(t *testing.T) {
		calls := 0
		err := testClient().Do(ctx, "create-instance", func(context.Context) error {
			calls++
			if calls < 3 {
				return status.Error(codes.Unavailable, "gateway restarting")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry permanent failures", func(t *testing.T) {
		calls := 0
		err := testClient().Do(ctx, "create-instance", func(context.Context) error {
			calls++
			return status.Error(codes.NotFound, "no process with id review")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, errors.ErrCodeResourceNotFound, errors.CodeOf(err))
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := testClient().Do(ctx, "create-instance", func(context.Context) error {
			calls++
			return stderrors.New("context deadline exceeded")
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, errors.ErrorCode("TIMEOUT_ERROR"), errors.CodeOf(err))
	})

	t.Run("duplicate is a business rule failure", func(t *testing.T) {
		err := testClient().Do(ctx, "create-instance", func(context.Context) error {
			return status.Error(codes.AlreadyExists, "instance exists")
		})
		assert.Equal(t, errors.ErrorCode("BUSINESS_RULE_VIOLATION"), errors.CodeOf(err))
	})

	t.Run("each attempt carries a deadline", func(t *testing.T) {
		err := testClient().Do(ctx, "topology", func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			return nil
		})
		assert.NoError(t, err)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		c := testClient()
		c.backoff.Base = time.Hour
		c.backoff.Max = time.Hour
		calls := 0
		err := c.Do(cctx, "create-instance", func(context.Context) error {
			calls++
			cancel()
			return status.Error(codes.Unavailable, "down")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestTransient(t *testing.T) {
	assert.True(t, transient(stderrors.New("dial tcp: connection refused")))
	assert.True(t, transient(status.Error(codes.Unavailable, "x")))
	assert.True(t, transient(status.Error(codes.ResourceExhausted, "x")))
	assert.False(t, transient(status.Error(codes.InvalidArgument, "timeout in variables")))
	assert.False(t, transient(stderrors.New("invalid argument")))
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 5 * time.Second}
	assert.Equal(t, time.Second, b.delay(0))
	assert.Equal(t, 4*time.Second, b.delay(2))
	assert.Equal(t, 5*time.Second, b.delay(3))
	assert.Equal(t, 5*time.Second, b.delay(70))
}

func TestReviewVariables(t *testing.T) {
	sub := &models.Submission{
		ID:       "s-1",
		FormID:   "f-1",
		FormName: "Patient Intake",
		Entries: []models.Entry{
			{FieldID: "a", Label: "Full Name", Value: models.StringValue("Asha")},
			{FieldID: "b", Label: "Age", Value: models.NumberValue(34)},
			{FieldID: "c", Label: "Notes", Value: models.Value{}},
		},
		SubmittedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Status:      models.StatusPending,
	}

	vars := ReviewVariables(sub)
	assert.Equal(t, "s-1", vars["submissionId"])
	assert.Equal(t, "pending", vars["status"])
	assert.Equal(t, "2026-03-01T09:30:00Z", vars["submittedAt"])

	data := vars["data"].(map[string]interface{})
	assert.Equal(t, "Asha", data["Full Name"])
	assert.Equal(t, 34.0, data["Age"])
	assert.Nil(t, data["Notes"])
}
