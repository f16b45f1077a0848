package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"inventory/application/ports"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// MockAPI is a mock implementation of the EventBridge API
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*eventbridge.PutEventsOutput), args.Error(1)
}

func TestNotifier_Notify_PublishesEvent(t *testing.T) {
	api := new(MockAPI)
	var input *eventbridge.PutEventsInput
	api.On("PutEvents", mock.Anything, mock.AnythingOfType("*eventbridge.PutEventsInput")).
		Run(func(args mock.Arguments) { input = args.Get(1).(*eventbridge.PutEventsInput) }).
		Return(&eventbridge.PutEventsOutput{}, nil)

	n := NewNotifier(api, "views-bus", DefaultBreakerConfig(), zap.NewNop())
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return fixed }

	n.Notify(context.Background(), ports.Notification{
		Level:     ports.LevelInfo,
		Title:     "View updated",
		Message:   "1 object(s) added",
		Subject:   ports.ObjectKey{ClassName: "Room", ID: "1"},
		ViewClass: "DefaultView",
	})

	api.AssertExpectations(t)
	require.NotNil(t, input)
	require.Len(t, input.Entries, 1)
	entry := input.Entries[0]
	assert.Equal(t, "views-bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, Source, aws.ToString(entry.Source))
	assert.Equal(t, "ViewChanged", aws.ToString(entry.DetailType))
	assert.Equal(t, fixed, aws.ToTime(entry.Time))

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "View updated", detail["title"])
	assert.Equal(t, "DefaultView", detail["viewClass"])
}

func TestNotifier_Notify_FailuresAreLogged(t *testing.T) {
	tests := []struct {
		name   string
		output *eventbridge.PutEventsOutput
		err    error
	}{
		{name: "client error", err: errors.New("throttled")},
		{
			name: "rejected entry",
			output: &eventbridge.PutEventsOutput{
				FailedEntryCount: 1,
				Entries:          []types.PutEventsResultEntry{{ErrorCode: aws.String("InternalFailure")}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := new(MockAPI)
			if tt.output != nil {
				api.On("PutEvents", mock.Anything, mock.Anything).Return(tt.output, nil)
			} else {
				api.On("PutEvents", mock.Anything, mock.Anything).Return(nil, tt.err)
			}
			core, logs := observer.New(zapcore.ErrorLevel)

			assert.NotPanics(t, func() {
				NewNotifier(api, "bus", DefaultBreakerConfig(), zap.New(core)).Notify(context.Background(), ports.Notification{Level: ports.LevelError})
			})
			assert.Equal(t, 1, logs.FilterMessage("Failed to publish notification").Len())
		})
	}
}

func TestNotifier_Notify_OpenCircuitSkipsPublishing(t *testing.T) {
	api := new(MockAPI)
	api.On("PutEvents", mock.Anything, mock.Anything).Return(nil, errors.New("service unavailable"))
	core, logs := observer.New(zapcore.DebugLevel)

	n := NewNotifier(api, "bus", BreakerConfig{
		MinRequests:      2,
		FailureThreshold: 1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
	}, zap.New(core))

	for i := 0; i < 5; i++ {
		n.Notify(context.Background(), ports.Notification{Level: ports.LevelInfo, Title: "View updated"})
	}

	api.AssertNumberOfCalls(t, "PutEvents", 2)
	assert.Equal(t, 2, logs.FilterMessage("Failed to publish notification").Len())
	assert.Equal(t, 3, logs.FilterMessage("Notification dropped, EventBridge circuit open").Len())
	assert.Equal(t, 1, logs.FilterMessage("Notification circuit breaker changed state").Len())
}

func TestDetailType(t *testing.T) {
	assert.Equal(t, "ViewError", DetailType(ports.LevelError))
	assert.Equal(t, "ViewWarning", DetailType(ports.LevelWarning))
	assert.Equal(t, "ViewChanged", DetailType(ports.LevelInfo))
}
