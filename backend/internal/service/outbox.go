package service

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/itchan-dev/accounts/shared/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	outboxMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_messages_total",
			Help: "Outbox messages processed by the dispatcher",
		},
		[]string{"event", "result"},
	)

	outboxCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outbox_cycle_duration_seconds",
			Help:    "Duration of one outbox dispatch cycle in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
)

const (
	outboxResultSent    = "sent"
	outboxResultFailed  = "failed"
	outboxResultDropped = "dropped"
)

// OutboxMessage is one pending side effect read from a channel.
type OutboxMessage struct {
	Id        string
	EventName string
	Payload   any
}

// OutboxChannel is a source of pending messages. Pending returns only
// messages named in eventNames; others stay queued without taking batch
// slots. Ack and Nack report the outcome of a handler back to the source.
type OutboxChannel interface {
	Name() string
	Pending(ctx context.Context, eventNames []string) ([]OutboxMessage, error)
	Ack(ctx context.Context, msg OutboxMessage) error
	Nack(ctx context.Context, msg OutboxMessage, cause error) error
}

type OutboxHandler interface {
	Handle(ctx context.Context, msg OutboxMessage) error
}

type OutboxHandlerFunc func(ctx context.Context, msg OutboxMessage) error

func (f OutboxHandlerFunc) Handle(ctx context.Context, msg OutboxMessage) error {
	return f(ctx, msg)
}

// OutboxDispatcher drains its channels on a fixed interval and routes each
// message to the handler registered for its event name.
type OutboxDispatcher struct {
	channels []OutboxChannel
	handlers map[string]OutboxHandler
}

func NewOutboxDispatcher(channels ...OutboxChannel) *OutboxDispatcher {
	return &OutboxDispatcher{
		channels: channels,
		handlers: make(map[string]OutboxHandler),
	}
}

// Register binds handler to eventName, replacing any previous binding.
func (d *OutboxDispatcher) Register(eventName string, handler OutboxHandler) {
	d.handlers[eventName] = handler
}

// RunCycle processes everything currently pending. Errors are logged, never
// returned: one bad message or channel must not stop the others.
func (d *OutboxDispatcher) RunCycle(ctx context.Context) {
	start := time.Now()
	defer func() { outboxCycleDuration.Observe(time.Since(start).Seconds()) }()

	eventNames := slices.Sorted(maps.Keys(d.handlers))
	for _, channel := range d.channels {
		if ctx.Err() != nil {
			return
		}
		messages, err := channel.Pending(ctx, eventNames)
		if err != nil {
			logger.Log.Error("failed to read outbox channel",
				"component", "outbox",
				"channel", channel.Name(),
				"error", err)
			continue
		}
		for _, msg := range messages {
			if ctx.Err() != nil {
				return
			}
			d.dispatch(ctx, channel, msg)
		}
	}
}

func (d *OutboxDispatcher) dispatch(ctx context.Context, channel OutboxChannel, msg OutboxMessage) {
	handler, ok := d.handlers[msg.EventName]
	if !ok {
		logger.Log.Warn("no handler registered for outbox event, dropping",
			"component", "outbox",
			"channel", channel.Name(),
			"event", msg.EventName,
			"message_id", msg.Id)
		outboxMessagesTotal.WithLabelValues(msg.EventName, outboxResultDropped).Inc()
		return
	}

	if err := d.handle(ctx, handler, msg); err != nil {
		logger.Log.Error("outbox handler failed",
			"component", "outbox",
			"channel", channel.Name(),
			"event", msg.EventName,
			"message_id", msg.Id,
			"error", err)
		outboxMessagesTotal.WithLabelValues(msg.EventName, outboxResultFailed).Inc()
		if nackErr := channel.Nack(ctx, msg, err); nackErr != nil {
			logger.Log.Error("failed to nack outbox message",
				"component", "outbox",
				"message_id", msg.Id,
				"error", nackErr)
		}
		return
	}

	outboxMessagesTotal.WithLabelValues(msg.EventName, outboxResultSent).Inc()
	if err := channel.Ack(ctx, msg); err != nil {
		logger.Log.Error("failed to ack outbox message",
			"component", "outbox",
			"message_id", msg.Id,
			"error", err)
	}
}

// handle turns a handler panic into an error so the loop survives it.
func (d *OutboxDispatcher) handle(ctx context.Context, handler OutboxHandler, msg OutboxMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, msg)
}

// StartBackgroundDispatch runs RunCycle every interval until ctx is done.
func (d *OutboxDispatcher) StartBackgroundDispatch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	logger.Log.Info("started outbox dispatcher",
		"component", "outbox",
		"interval", interval,
		"channels", len(d.channels),
		"handlers", len(d.handlers))

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.RunCycle(ctx)
			case <-ctx.Done():
				logger.Log.Info("outbox dispatcher shutting down gracefully",
					"component", "outbox")
				return
			}
		}
	}()
}
