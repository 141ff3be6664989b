package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservedCodec(t *testing.T) {
	codec := NewReservedCodec("reserved-secret", time.Hour)
	in := Reserved{Origin: "https://shop.example", OrderID: "ORD1", Method: "CARD"}

	t.Run("Round trip", func(t *testing.T) {
		token, err := codec.Encode(in)
		require.NoError(t, err)

		out, err := codec.Decode(token)
		require.NoError(t, err)
		assert.Equal(t, in, *out)
	})

	t.Run("Wrong key", func(t *testing.T) {
		token, err := NewReservedCodec("other", time.Hour).Encode(in)
		require.NoError(t, err)

		_, err = codec.Decode(token)
		assert.ErrorIs(t, err, ErrInvalidReserved)
	})

	t.Run("Expired", func(t *testing.T) {
		old := NewReservedCodec("reserved-secret", time.Minute)
		old.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, err := old.Encode(in)
		require.NoError(t, err)

		_, err = codec.Decode(token)
		assert.ErrorIs(t, err, ErrInvalidReserved)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := codec.Decode(`{"orderId":"ORD1"}`)
		assert.ErrorIs(t, err, ErrInvalidReserved)
	})

	t.Run("Missing key", func(t *testing.T) {
		_, err := NewReservedCodec("", time.Hour).Encode(in)
		assert.Error(t, err)
	})
}
