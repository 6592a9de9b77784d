package queue

import (
	"fmt"

	"go.uber.org/zap"
)

// MessageQueue carries command events between the dispatcher and the
// update stream.
type MessageQueue interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte) error) error
	Ping() error
	Close() error
}

const (
	ProviderNATS     = "nats"
	ProviderRabbitMQ = "rabbitmq"
	ProviderNone     = "none"
)

// New connects to the configured provider. ProviderNone returns a nil queue
// and no error.
func New(provider, url string, log *zap.Logger) (MessageQueue, error) {
	switch provider {
	case ProviderNATS:
		return NewNATSQueue(url, log)
	case ProviderRabbitMQ:
		return NewRabbitMQQueue(url, log)
	case ProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown queue provider %q", provider)
	}
}
