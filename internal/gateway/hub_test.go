package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHub_Dispatch(t *testing.T) {
	t.Run("Success is delivered once", func(t *testing.T) {
		h := NewHub()
		var got []Approval
		h.Register("ORD1", Callbacks{OnSuccess: func(a Approval) { got = append(got, a) }})

		ev := CallbackEvent{OrderID: "ORD1", Result: ResultSuccess, GatewayRef: "T1", Method: "CARD", Amount: 30000}
		assert.True(t, h.Dispatch(ev))
		assert.False(t, h.Dispatch(ev))

		assert.Equal(t, []Approval{{GatewayRef: "T1", Method: "CARD", Amount: 30000}}, got)
	})

	t.Run("Error and closed", func(t *testing.T) {
		h := NewHub()
		var code, msg string
		h.Register("ORD1", Callbacks{OnError: func(c, m string) { code, msg = c, m }})
		assert.True(t, h.Dispatch(CallbackEvent{OrderID: "ORD1", Result: ResultError, Code: "E01", Message: "declined"}))
		assert.Equal(t, "E01", code)
		assert.Equal(t, "declined", msg)

		closed := false
		h.Register("ORD2", Callbacks{OnClose: func() { closed = true }})
		assert.True(t, h.Dispatch(CallbackEvent{OrderID: "ORD2", Result: ResultClosed}))
		assert.True(t, closed)
	})

	t.Run("Unknown order", func(t *testing.T) {
		assert.False(t, NewHub().Dispatch(CallbackEvent{OrderID: "nope", Result: ResultSuccess}))
	})

	t.Run("Stale unregister keeps newer registration", func(t *testing.T) {
		h := NewHub()
		first := h.Register("ORD1", Callbacks{})
		h.Register("ORD1", Callbacks{})

		first()
		assert.True(t, h.Pending("ORD1"))
	})
}
