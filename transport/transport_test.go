package transport

import (
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"

	"github.com/drblury/commitlog/transport/transporttest"
)

type failingCloser struct {
	message.Publisher
	err error
}

func (f failingCloser) Close() error { return f.err }

func TestTransportClose(t *testing.T) {
	t.Run("closes both sides", func(t *testing.T) {
		pub := &transporttest.Publisher{}
		sub := &transporttest.Subscriber{}
		assert.NoError(t, Transport{Publisher: pub, Subscriber: sub}.Close())
		assert.True(t, pub.Closed())
		assert.True(t, sub.Closed())
	})

	t.Run("tolerates a missing subscriber", func(t *testing.T) {
		pub := &transporttest.Publisher{}
		assert.NoError(t, Transport{Publisher: pub}.Close())
		assert.True(t, pub.Closed())
		assert.NoError(t, Transport{}.Close())
	})

	t.Run("joins close errors", func(t *testing.T) {
		closeErr := errors.New("flush failed")
		sub := &transporttest.Subscriber{}
		err := Transport{Publisher: failingCloser{err: closeErr}, Subscriber: sub}.Close()
		assert.ErrorIs(t, err, closeErr)
		assert.True(t, sub.Closed())
	})
}
