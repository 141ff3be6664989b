package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSDK becomes ready readyAfter polls after Inject.
type fakeSDK struct {
	ready      atomic.Bool
	injects    atomic.Int32
	removes    atomic.Int32
	resets     atomic.Int32
	injectErr  error
	injectWait chan struct{}
	readyAfter int32
	polls      atomic.Int32
	injected   atomic.Bool
}

func (f *fakeSDK) Ready() bool {
	if f.ready.Load() {
		return true
	}
	if f.injected.Load() && f.polls.Add(1) > f.readyAfter {
		f.ready.Store(true)
		return true
	}
	return false
}

func (f *fakeSDK) Checkout(context.Context, CheckoutRequest, Callbacks) error { return nil }

func (f *fakeSDK) RemoveStale() { f.removes.Add(1) }
func (f *fakeSDK) Reset()       { f.resets.Add(1) }

func (f *fakeSDK) Inject(ctx context.Context) error {
	f.injects.Add(1)
	if f.injectWait != nil {
		<-f.injectWait
	}
	if f.injectErr != nil {
		return f.injectErr
	}
	f.injected.Store(true)
	return nil
}

func TestBootstrap_AlreadyReady(t *testing.T) {
	sdk := &fakeSDK{}
	sdk.ready.Store(true)
	b := NewBootstrap(sdk, sdk, time.Millisecond, 3)

	require.NoError(t, b.EnsureLoaded(context.Background()))
	assert.Equal(t, int32(0), sdk.injects.Load())
	assert.Equal(t, int32(0), sdk.removes.Load())
}

func TestBootstrap_ConcurrentCallersInjectOnce(t *testing.T) {
	sdk := &fakeSDK{injectWait: make(chan struct{}), readyAfter: 2}
	b := NewBootstrap(sdk, sdk, time.Millisecond, 30)

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = b.EnsureLoaded(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return sdk.injects.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(sdk.injectWait)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), sdk.injects.Load())
	assert.Equal(t, int32(1), sdk.removes.Load())
	assert.Equal(t, int32(1), sdk.resets.Load())
}

func TestBootstrap_InjectFailure(t *testing.T) {
	sdk := &fakeSDK{injectErr: errors.New("script load error")}
	b := NewBootstrap(sdk, sdk, time.Millisecond, 3)

	err := b.EnsureLoaded(context.Background())
	assert.ErrorIs(t, err, ErrSDKLoadFailed)
	assert.Contains(t, err.Error(), "script load error")
}

func TestBootstrap_NeverReady(t *testing.T) {
	sdk := &fakeSDK{readyAfter: 1000}
	b := NewBootstrap(sdk, sdk, time.Millisecond, 5)

	err := b.EnsureLoaded(context.Background())
	assert.ErrorIs(t, err, ErrSDKLoadFailed)
	assert.Equal(t, int32(1), sdk.injects.Load())
}

func TestBootstrap_RetryAfterFailure(t *testing.T) {
	sdk := &fakeSDK{injectErr: errors.New("offline")}
	b := NewBootstrap(sdk, sdk, time.Millisecond, 3)

	require.Error(t, b.EnsureLoaded(context.Background()))

	sdk.injectErr = nil
	require.NoError(t, b.EnsureLoaded(context.Background()))
	assert.Equal(t, int32(2), sdk.injects.Load())
}

func TestBootstrap_CallerContextCanceled(t *testing.T) {
	sdk := &fakeSDK{injectWait: make(chan struct{})}
	b := NewBootstrap(sdk, sdk, time.Millisecond, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.EnsureLoaded(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	close(sdk.injectWait)
}
