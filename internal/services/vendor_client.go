package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/onegreenvn/crm-campaign-backend/internal/models"
)

// VendorSender submits one message to the delivery vendor.
// A nil error only means the vendor accepted it; the outcome arrives on the receipt webhook.
type VendorSender interface {
	Send(ctx context.Context, req models.VendorSendRequest) error
}

// VendorStatusError is a non-2xx vendor response
type VendorStatusError struct {
	StatusCode int
}

func (e *VendorStatusError) Error() string {
	return fmt.Sprintf("Vendor responded with status %d", e.StatusCode)
}

// VendorClient posts send requests to the vendor HTTP API
type VendorClient struct {
	url    string
	client *http.Client
}

func NewVendorClient(url string, timeout time.Duration) *VendorClient {
	return &VendorClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *VendorClient) Send(ctx context.Context, req models.VendorSendRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal vendor request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build vendor request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &VendorStatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// retryableSendError reports whether another attempt could succeed:
// transport errors, 429 and 5xx.
func retryableSendError(err error) bool {
	var statusErr *VendorStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	return err != nil
}

// sendFailureReason is the failureReason stored on the log
func sendFailureReason(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Vendor request timed out"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Vendor request timed out"
	}
	var statusErr *VendorStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Error()
	}
	return fmt.Sprintf("Vendor request failed: %v", err)
}
