package kafka

import (
	"context"

	"go.uber.org/zap"
)

// BootstrapStatusEvents optionally ensures the topic, then returns a publisher for it.
func BootstrapStatusEvents(ctx context.Context, cfg Config, log *zap.Logger) *StatusEvents {
	if cfg.EnsureTopic {
		err := EnsureTopic(ctx, cfg.Brokers, TopicSpec{
			Name:              cfg.Topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
			MaxWait:           cfg.TopicWait,
		}, log)
		if err != nil {
			// not fatal: writes succeed once the topic exists
			log.Warn("ensure status topic", zap.String("topic", cfg.Topic), zap.Error(err))
		}
	}
	return NewStatusEvents(NewProducer(cfg.Brokers, cfg.Topic, log))
}
