package metadata

import "github.com/ThreeDotsLabs/watermill/message"

// FromWatermill copies message headers into Metadata.
func FromWatermill(md message.Metadata) Metadata {
	out := make(Metadata, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

// ToWatermill copies Metadata into message headers. The result is never nil
// so callers can set further keys on it.
func ToWatermill(md Metadata) message.Metadata {
	out := make(message.Metadata, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
