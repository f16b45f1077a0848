package messaging

import (
	"context"
	"sync"

	"inventory/application/ports"
	"go.uber.org/zap"
)

// LogNotifier writes notifications to the application log
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by logger
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs n at the level matching its grade
func (n *LogNotifier) Notify(ctx context.Context, notification ports.Notification) {
	fields := []zap.Field{
		zap.String("title", notification.Title),
		zap.String("subject", notification.Subject.String()),
		zap.String("view_class", notification.ViewClass),
	}
	switch notification.Level {
	case ports.LevelError:
		n.logger.Error(notification.Message, fields...)
	case ports.LevelWarning:
		n.logger.Warn(notification.Message, fields...)
	default:
		n.logger.Info(notification.Message, fields...)
	}
}

// FanOutNotifier delivers every notification to all of its sinks
type FanOutNotifier struct {
	sinks []ports.Notifier
}

// NewFanOutNotifier combines sinks; nil sinks are ignored
func NewFanOutNotifier(sinks ...ports.Notifier) *FanOutNotifier {
	f := &FanOutNotifier{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Notify calls every sink concurrently and waits for all of them
func (f *FanOutNotifier) Notify(ctx context.Context, notification ports.Notification) {
	if len(f.sinks) == 1 {
		f.sinks[0].Notify(ctx, notification)
		return
	}
	var wg sync.WaitGroup
	for _, s := range f.sinks {
		wg.Add(1)
		go func(s ports.Notifier) {
			defer wg.Done()
			s.Notify(ctx, notification)
		}(s)
	}
	wg.Wait()
}
