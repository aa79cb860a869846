package publish

import (
	"context"
	"fmt"

	"github.com/itohio/gonibp/pkg/config"
)

// Backend names accepted in the publish config.
const (
	BackendNone = "none"
	BackendNATS = "nats"
	BackendMQTT = "mqtt"
)

// Publisher delivers measurement messages.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

var (
	_ Publisher = Nop{}
	_ Publisher = (*NATS)(nil)
	_ Publisher = (*MQTT)(nil)
)

// New connects the backend named in cfg.
func New(cfg config.PublishConfig) (Publisher, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return Nop{}, nil
	case BackendNATS:
		p, err := DialNATS(cfg.URL, cfg.Subject)
		if err != nil {
			return nil, err
		}
		return p, nil
	case BackendMQTT:
		p, err := DialMQTT(cfg.URL, cfg.Subject)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown publish backend %q", cfg.Backend)
	}
}

// Nop discards messages.
type Nop struct{}

func (Nop) Publish(context.Context, Message) error { return nil }
func (Nop) Close() error                           { return nil }
