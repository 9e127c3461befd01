package events

import (
	"context"
	"fmt"

	"github.com/drblury/commitlog/internal/runtime/config"
	"github.com/drblury/commitlog/internal/runtime/logging"
	"github.com/drblury/commitlog/transport"
)

// Open builds the transport selected by cfg and a Publisher on its topic.
// The caller closes the returned transport once the publisher is done.
func Open(ctx context.Context, cfg config.Events, logger logging.ServiceLogger, opts ...Option) (*Publisher, transport.Transport, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	tr, caps, err := transport.Open(ctx, cfg, logging.NewWatermillAdapter(logger))
	if err != nil {
		return nil, transport.Transport{}, fmt.Errorf("build %s transport: %w", cfg.Transport, err)
	}

	base := []Option{
		WithCapabilities(caps),
		WithLogger(logger),
	}
	pub, err := NewPublisher(tr.Publisher, cfg.Topic, append(base, opts...)...)
	if err != nil {
		_ = tr.Close()
		return nil, transport.Transport{}, err
	}
	logger.Info("Publishing job events", logging.LogFields{
		"transport": cfg.Transport,
		"topic":     cfg.Topic,
	})
	return pub, tr, nil
}
