package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilitiesReliableDelivery(t *testing.T) {
	tests := []struct {
		caps Capabilities
		want bool
	}{
		{ChannelCapabilities, true},
		{HTTPCapabilities, false},
		{KafkaCapabilities, false},
		{NATSCapabilities, false},
		{RabbitMQCapabilities, true},
		{AWSCapabilities, true},
	}
	for _, tt := range tests {
		t.Run(tt.caps.Name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.caps.SupportsReliableDelivery())
		})
	}
}

func TestCapabilitiesAccepts(t *testing.T) {
	assert.True(t, ChannelCapabilities.Accepts(1<<30), "unlimited backends accept anything")
	assert.True(t, AWSCapabilities.Accepts(256<<10))
	assert.False(t, AWSCapabilities.Accepts(256<<10+1))
	assert.True(t, KafkaCapabilities.Accepts(1<<20))
	assert.False(t, NATSCapabilities.Accepts(1<<20+1))
}

func TestCapabilitiesDurability(t *testing.T) {
	for _, caps := range []Capabilities{KafkaCapabilities, RabbitMQCapabilities, AWSCapabilities} {
		assert.True(t, caps.Durable, caps.Name)
	}
	for _, caps := range []Capabilities{ChannelCapabilities, HTTPCapabilities, NATSCapabilities} {
		assert.False(t, caps.Durable, caps.Name)
	}
}
