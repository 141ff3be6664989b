package gateway

import (
	"context"
	"fmt"
	"time"

	"paysession-be/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultPollInterval = 200 * time.Millisecond
	DefaultPollAttempts = 30
)

// Bootstrap makes sure the SDK is callable, loading it at most once at a
// time no matter how many callers ask.
type Bootstrap struct {
	sdk         SDK
	host        Host
	interval    time.Duration
	maxAttempts int

	group singleflight.Group
}

func NewBootstrap(sdk SDK, host Host, interval time.Duration, maxAttempts int) *Bootstrap {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollAttempts
	}
	return &Bootstrap{
		sdk:         sdk,
		host:        host,
		interval:    interval,
		maxAttempts: maxAttempts,
	}
}

// EnsureLoaded returns nil once the SDK is ready. Failures wrap
// ErrSDKLoadFailed.
func (b *Bootstrap) EnsureLoaded(ctx context.Context) error {
	if b.sdk.Ready() {
		return nil
	}

	ch := b.group.DoChan("sdk", func() (interface{}, error) {
		return nil, b.load(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bootstrap) load(ctx context.Context) error {
	log := logger.FromCtx(ctx).With(zap.String("layer", "bootstrap"))

	if b.sdk.Ready() {
		return nil
	}

	b.host.RemoveStale()
	b.host.Reset()

	if err := b.host.Inject(ctx); err != nil {
		log.Error("sdk injection failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrSDKLoadFailed, err)
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		if b.sdk.Ready() {
			log.Debug("sdk ready", zap.Int("attempt", attempt))
			return nil
		}
		<-ticker.C
	}

	if b.sdk.Ready() {
		return nil
	}

	log.Error("sdk never became ready", zap.Int("attempts", b.maxAttempts))
	return fmt.Errorf("%w: not ready after %d attempts", ErrSDKLoadFailed, b.maxAttempts)
}
