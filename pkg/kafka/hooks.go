package kafka

import (
	"context"
	"time"

	"TickFuse/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook observes the consumer's handling lifecycle. BeforeHandle
// may rewrite the context, message, or payload; returning an error
// fails the attempt without calling the handler.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
	OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
}

// NoopHook is the default hook.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	return ctx, km, data, nil
}

func (NoopHook) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
}

func (NoopHook) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
}

// LoggingHook traces record handling at debug level and per-attempt
// failures at warn level. Terminal failures are logged by the consumer
// itself, so OnError stays at warn to avoid double error noise.
type LoggingHook struct {
	log *logger.Logger
}

func NewLoggingHook(log *logger.Logger) *LoggingHook {
	return &LoggingHook{log: log}
}

type hookStartKey struct{}

func (h *LoggingHook) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	return context.WithValue(ctx, hookStartKey{}, time.Now()), km, data, nil
}

func (h *LoggingHook) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	if err != nil {
		return
	}
	start, ok := ctx.Value(hookStartKey{}).(time.Time)
	if !ok {
		return
	}
	h.log.Debug("kafka record handled",
		logger.String("topic", topic),
		logger.Int("partition", km.Partition),
		logger.Int64("offset", km.Offset),
		logger.Duration("took", time.Since(start)))
}

func (h *LoggingHook) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	h.log.Warn("kafka record attempt failed",
		logger.String("topic", topic),
		logger.Int("partition", km.Partition),
		logger.Int64("offset", km.Offset),
		logger.Error(err))
}

var _ ConsumerHook = (*LoggingHook)(nil)
