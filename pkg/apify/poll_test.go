package apify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient implements Client with function fields.
type mockClient struct {
	startFunc   func(ctx context.Context, actorID string, input any) (*Run, error)
	getRunFunc  func(ctx context.Context, runID string) (*Run, error)
	datasetFunc func(ctx context.Context, datasetID string, out any) error
}

func (m *mockClient) StartRun(ctx context.Context, actorID string, input any) (*Run, error) {
	return m.startFunc(ctx, actorID, input)
}

func (m *mockClient) GetRun(ctx context.Context, runID string) (*Run, error) {
	return m.getRunFunc(ctx, runID)
}

func (m *mockClient) DatasetItems(ctx context.Context, datasetID string, out any) error {
	return m.datasetFunc(ctx, datasetID, out)
}

func TestWaitForRun_SucceedsAfterPolling(t *testing.T) {
	var calls atomic.Int32
	m := &mockClient{getRunFunc: func(_ context.Context, id string) (*Run, error) {
		if calls.Add(1) < 3 {
			return &Run{ID: id, Status: StatusRunning}, nil
		}
		return &Run{ID: id, Status: StatusSucceeded, DefaultDatasetID: "ds"}, nil
	}}

	run, err := WaitForRun(context.Background(), m, "run-1", WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, "ds", run.DefaultDatasetID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWaitForRun_FailedRun(t *testing.T) {
	m := &mockClient{getRunFunc: func(_ context.Context, id string) (*Run, error) {
		return &Run{ID: id, Status: StatusFailed}, nil
	}}

	run, err := WaitForRun(context.Background(), m, "run-1", WithPollInterval(time.Millisecond))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FAILED")
	require.NotNil(t, run)
}

func TestWaitForRun_Timeout(t *testing.T) {
	m := &mockClient{getRunFunc: func(_ context.Context, id string) (*Run, error) {
		return &Run{ID: id, Status: StatusRunning}, nil
	}}

	_, err := WaitForRun(context.Background(), m, "run-1",
		WithPollInterval(5*time.Millisecond),
		WithPollCap(5*time.Millisecond),
		WithPollTimeout(30*time.Millisecond),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestWaitForRun_GetError(t *testing.T) {
	m := &mockClient{getRunFunc: func(context.Context, string) (*Run, error) {
		return nil, &APIError{StatusCode: 404, Body: "not found"}
	}}

	_, err := WaitForRun(context.Background(), m, "run-1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
}

func TestRunActor(t *testing.T) {
	m := &mockClient{
		startFunc: func(_ context.Context, actorID string, input any) (*Run, error) {
			assert.Equal(t, "acme/contacts", actorID)
			return &Run{ID: "run-1", Status: StatusReady}, nil
		},
		getRunFunc: func(_ context.Context, id string) (*Run, error) {
			return &Run{ID: id, Status: StatusSucceeded, DefaultDatasetID: "ds-1"}, nil
		},
		datasetFunc: func(_ context.Context, datasetID string, out any) error {
			assert.Equal(t, "ds-1", datasetID)
			*(out.(*[]string)) = []string{"a", "b"}
			return nil
		},
	}

	var items []string
	require.NoError(t, RunActor(context.Background(), m, "acme/contacts", nil, &items))
	assert.Equal(t, []string{"a", "b"}, items)
}

func TestRunActor_StartError(t *testing.T) {
	m := &mockClient{startFunc: func(context.Context, string, any) (*Run, error) {
		return nil, errors.New("boom")
	}}

	var items []string
	require.Error(t, RunActor(context.Background(), m, "acme/contacts", nil, &items))
}
