package confirm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"paysession-be/internal/logger"

	"go.uber.org/zap"
)

// CodeAlreadyProcessed is the backend's idempotency-hit code.
const CodeAlreadyProcessed = "ALREADY_PROCESSED"

type BackendRequest struct {
	GatewayRef string `json:"gatewayRef"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

type BackendPayment struct {
	Method     string `json:"method"`
	ReceiptRef string `json:"receiptRef,omitempty"`
}

type backendEnvelope struct {
	OK    bool            `json:"ok"`
	Data  *BackendPayment `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// BackendError is a structured failure reported by the confirmation endpoint.
type BackendError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend confirm failed (%d %s): %s", e.StatusCode, e.Code, e.Message)
}

type Backend interface {
	Confirm(ctx context.Context, req BackendRequest) (*BackendPayment, error)
}

type HTTPBackend struct {
	url        string
	httpClient *http.Client
}

func NewHTTPBackend(url string, timeout time.Duration) *HTTPBackend {
	if url == "" {
		logger.L().Warn("backend confirm URL is empty")
	}
	return &HTTPBackend{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (b *HTTPBackend) Confirm(ctx context.Context, in BackendRequest) (*BackendPayment, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "backend"),
		zap.String("order_id", in.OrderID),
		zap.String("gateway_ref", in.GatewayRef),
	)

	jsonBody, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewBuffer(jsonBody))
	if err != nil {
		log.Error("failed creating request", zap.Error(err))
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	log.Info("sending confirmation to backend", zap.Int64("amount", in.Amount))

	resp, err := b.httpClient.Do(req)
	if err != nil {
		log.Error("backend request failed", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("failed to read response body", zap.Error(err))
		return nil, fmt.Errorf("failed to read backend response: %w", err)
	}

	var env backendEnvelope
	if err := json.Unmarshal(bodyBytes, &env); err != nil {
		log.Error("failed decoding backend response",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return nil, &BackendError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected backend response: %s", http.StatusText(resp.StatusCode)),
		}
	}

	if resp.StatusCode >= 300 || !env.OK {
		be := &BackendError{StatusCode: resp.StatusCode}
		if env.Error != nil {
			be.Code = env.Error.Code
			be.Message = env.Error.Message
		}
		if be.Message == "" {
			be.Message = http.StatusText(resp.StatusCode)
		}
		log.Warn("backend rejected confirmation",
			zap.Int("status", resp.StatusCode),
			zap.String("code", be.Code),
		)
		return nil, be
	}

	if env.Data == nil {
		env.Data = &BackendPayment{}
	}
	log.Info("backend confirmed payment", zap.String("receipt_ref", env.Data.ReceiptRef))
	return env.Data, nil
}
