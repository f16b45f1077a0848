package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"inventory/application/ports"
	pkgerrors "inventory/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Source is the EventBridge source of every notification
const Source = "inventory.views"

// API is the part of the EventBridge client the notifier uses
type API interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Notifier publishes view notifications to an EventBridge bus
type Notifier struct {
	client       API
	eventBusName string
	breaker      *gobreaker.CircuitBreaker
	logger       *zap.Logger
	now          func() time.Time
}

// BreakerConfig controls when publishing is suspended after repeated failures
type BreakerConfig struct {
	MinRequests      uint32
	FailureThreshold float64
	Interval         time.Duration
	Timeout          time.Duration
}

// DefaultBreakerConfig returns the breaker settings used in production
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MinRequests:      5,
		FailureThreshold: 0.8,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
	}
}

// NewNotifier creates a new EventBridge notifier
func NewNotifier(client API, eventBusName string, breaker BreakerConfig, logger *zap.Logger) *Notifier {
	n := &Notifier{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger,
		now:          time.Now,
	}
	n.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "eventbridge:" + eventBusName,
		Interval: breaker.Interval,
		Timeout:  breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breaker.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= breaker.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Notification circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return n
}

type notificationDetail struct {
	Level     ports.NotificationLevel `json:"level"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	Subject   ports.ObjectKey         `json:"subject"`
	ViewClass string                  `json:"viewClass,omitempty"`
}

// Notify publishes one event. Failures are logged, never returned.
// While the breaker is open notifications are dropped without a call.
func (n *Notifier) Notify(ctx context.Context, notification ports.Notification) {
	_, err := n.breaker.Execute(func() (interface{}, error) {
		return nil, n.publish(ctx, notification)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		n.logger.Debug("Notification dropped, EventBridge circuit open",
			zap.String("title", notification.Title),
		)
		return
	}
	if err != nil {
		n.logger.Error("Failed to publish notification",
			zap.String("title", notification.Title),
			zap.String("subject", notification.Subject.String()),
			zap.Error(err),
		)
	}
}

func (n *Notifier) publish(ctx context.Context, notification ports.Notification) error {
	detail, err := json.Marshal(notificationDetail{
		Level:     notification.Level,
		Title:     notification.Title,
		Message:   notification.Message,
		Subject:   notification.Subject,
		ViewClass: notification.ViewClass,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	result, err := n.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			EventBusName: aws.String(n.eventBusName),
			Source:       aws.String(Source),
			DetailType:   aws.String(DetailType(notification.Level)),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(n.now()),
			Resources: []string{
				fmt.Sprintf("inventory:object/%s", notification.Subject),
			},
		}},
	})
	if err != nil {
		return pkgerrors.NewExternalError("eventbridge", err)
	}

	if result.FailedEntryCount > 0 {
		for _, entry := range result.Entries {
			if entry.ErrorCode != nil {
				return fmt.Errorf("event rejected: %s: %s", aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
			}
		}
		return fmt.Errorf("%d events failed to publish", result.FailedEntryCount)
	}

	n.logger.Debug("Notification published to EventBridge",
		zap.String("eventBus", n.eventBusName),
		zap.String("title", notification.Title),
	)
	return nil
}

// DetailType maps a notification level to the event detail type
func DetailType(level ports.NotificationLevel) string {
	switch level {
	case ports.LevelError:
		return "ViewError"
	case ports.LevelWarning:
		return "ViewWarning"
	default:
		return "ViewChanged"
	}
}
