package gateway

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"paysession-be/internal/logger"

	"go.uber.org/zap"
)

const callbackTokenHeader = "X-Callback-Token"

type ClientConfig struct {
	ClientID      string
	SecretKey     string
	BaseURL       string
	SDKURL        string
	CallbackToken string
	Timeout       time.Duration
}

// manifest is what the SDK endpoint serves: where checkouts are opened and
// which client version is current.
type manifest struct {
	Version      string `json:"version"`
	CheckoutPath string `json:"checkoutPath"`
}

// Client talks to the hosted checkout gateway. It is both the SDK and its
// Host: Inject fetches the manifest that makes Checkout callable.
type Client struct {
	clientID      string
	secretKey     string
	baseURL       string
	sdkURL        string
	callbackToken string
	httpClient    *http.Client
	hub           *Hub

	mu         sync.RWMutex
	handle     *manifest
	generation uint64
}

func NewClient(cfg ClientConfig, hub *Hub) *Client {
	if cfg.ClientID == "" || cfg.SecretKey == "" {
		logger.L().Warn("gateway credentials are empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &Client{
		clientID:      cfg.ClientID,
		secretKey:     cfg.SecretKey,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		sdkURL:        cfg.SDKURL,
		callbackToken: cfg.CallbackToken,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		hub:           hub,
	}
}

// ----------------- Host -----------------

func (c *Client) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handle != nil && c.handle.CheckoutPath != ""
}

// RemoveStale invalidates any manifest fetch still in flight.
func (c *Client) RemoveStale() {
	c.mu.Lock()
	c.generation++
	c.mu.Unlock()
}

func (c *Client) Reset() {
	c.mu.Lock()
	c.handle = nil
	c.mu.Unlock()
}

func (c *Client) Inject(ctx context.Context) error {
	log := logger.FromCtx(ctx).With(zap.String("layer", "gateway"), zap.String("sdk_url", c.sdkURL))

	c.mu.RLock()
	gen := c.generation
	c.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sdkURL, nil)
	if err != nil {
		log.Error("failed building request", zap.Error(err))
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("sdk manifest request failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read sdk manifest: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Error("sdk manifest returned error",
			zap.Int("http_status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return fmt.Errorf("sdk manifest error: status %d", resp.StatusCode)
	}

	var m manifest
	if err := json.Unmarshal(bodyBytes, &m); err != nil {
		log.Error("failed decoding sdk manifest", zap.Error(err))
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		log.Debug("discarding stale sdk manifest")
		return nil
	}
	c.handle = &m
	log.Info("gateway sdk loaded", zap.String("version", m.Version))
	return nil
}

// ----------------- Checkout -----------------

// Checkout opens a hosted checkout. Callbacks stay registered until one of
// them fires or ctx is done.
func (c *Client) Checkout(ctx context.Context, in CheckoutRequest, cb Callbacks) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "gateway"),
		zap.String("order_id", in.OrderID),
		zap.String("method", in.Method),
		zap.Int64("amount", in.Amount),
	)

	c.mu.RLock()
	handle := c.handle
	c.mu.RUnlock()
	if handle == nil || handle.CheckoutPath == "" {
		return ErrSDKNotReady
	}

	jsonBody, err := json.Marshal(in)
	if err != nil {
		log.Error("failed to marshal checkout request", zap.Error(err))
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+handle.CheckoutPath, bytes.NewBuffer(jsonBody))
	if err != nil {
		log.Error("failed creating request", zap.Error(err))
		return err
	}
	req.SetBasicAuth(c.clientID, c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	unregister := c.hub.Register(in.OrderID, cb)

	log.Info("opening hosted checkout")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		unregister()
		log.Error("checkout request failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		unregister()
		return fmt.Errorf("failed to read checkout response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		unregister()
		log.Error("gateway returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return fmt.Errorf("gateway checkout error: %s", string(bodyBytes))
	}

	go func() {
		<-ctx.Done()
		unregister()
	}()

	return nil
}

// ----------------- Verify Callback -----------------

func (c *Client) VerifyCallback(r *http.Request) error {
	expected := c.callbackToken
	if expected == "" {
		return nil // skip in dev
	}

	got := r.Header.Get(callbackTokenHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// ParseCallback decodes a gateway callback body.
func ParseCallback(body io.Reader) (CallbackEvent, error) {
	var ev CallbackEvent
	if err := json.NewDecoder(body).Decode(&ev); err != nil {
		return ev, fmt.Errorf("decode callback: %w", err)
	}
	if ev.OrderID == "" {
		return ev, errors.New("callback missing orderId")
	}
	ev.Result = strings.ToLower(strings.TrimSpace(ev.Result))
	return ev, nil
}
