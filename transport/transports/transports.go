// Package transports imports every built-in event transport so each one
// registers itself with the default registry.
package transports

import (
	_ "github.com/drblury/commitlog/transport/aws"
	_ "github.com/drblury/commitlog/transport/channel"
	_ "github.com/drblury/commitlog/transport/http"
	_ "github.com/drblury/commitlog/transport/kafka"
	_ "github.com/drblury/commitlog/transport/nats"
	_ "github.com/drblury/commitlog/transport/rabbitmq"
)
