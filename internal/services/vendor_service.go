package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/onegreenvn/crm-campaign-backend/internal/apperror"
	"github.com/onegreenvn/crm-campaign-backend/internal/config"
	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/onegreenvn/crm-campaign-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

const (
	vendorFailureReason = "Network timeout"
	webhookSecretHeader = "X-Webhook-Secret"
)

// VendorService is the stand-in message vendor. It accepts a send at once and
// reports the simulated outcome to the callback URL after a random delay.
type VendorService struct {
	successPc     int
	minDelay      time.Duration
	maxDelay      time.Duration
	webhookSecret string
	client        *http.Client

	mu       sync.Mutex
	rng      *rand.Rand
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func NewVendorService(cfg config.DeliveryConfig) *VendorService {
	ctx, cancel := context.WithCancel(context.Background())
	maxDelay := cfg.VendorMaxDelay
	if maxDelay < cfg.VendorMinDelay {
		maxDelay = cfg.VendorMinDelay
	}
	return &VendorService{
		successPc:     cfg.VendorSuccessPc,
		minDelay:      cfg.VendorMinDelay,
		maxDelay:      maxDelay,
		webhookSecret: cfg.WebhookSecret,
		client:        &http.Client{Timeout: cfg.VendorTimeout},
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Accept validates a send request and schedules its receipt
func (s *VendorService) Accept(req models.VendorSendRequest) error {
	if v := utils.ValidateStruct(req); len(v) > 0 {
		return apperror.Validation("Invalid vendor request", v...)
	}

	delay, receipt := s.roll(req.LogID)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.ctx.Done():
			return
		}
		if err := s.postReceipt(req.CallbackURL, receipt); err != nil {
			logrus.Errorf("Error calling delivery receipt for log %s: %v", req.LogID, err)
		}
	}()
	return nil
}

// roll draws the delay and the outcome of one send
func (s *VendorService) roll(logID string) (time.Duration, models.DeliveryReceiptRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delay := s.minDelay
	if span := s.maxDelay - s.minDelay; span > 0 {
		delay += time.Duration(s.rng.Int63n(int64(span)))
	}
	receipt := models.DeliveryReceiptRequest{LogID: logID, Status: models.DeliverySent}
	if s.rng.Intn(100) >= s.successPc {
		receipt.Status = models.DeliveryFailed
		receipt.FailureReason = vendorFailureReason
	}
	return delay, receipt
}

func (s *VendorService) postReceipt(callbackURL string, receipt models.DeliveryReceiptRequest) error {
	stamp, err := json.Marshal(time.Now())
	if err != nil {
		return err
	}
	receipt.DeliveredAt = stamp
	body, err := json.Marshal(receipt)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.webhookSecret != "" {
		req.Header.Set(webhookSecretHeader, s.webhookSecret)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("receipt endpoint responded with status %d", resp.StatusCode)
	}
	return nil
}

// Stop drops receipts that have not fired yet and waits for in-flight callbacks
func (s *VendorService) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		logrus.Info("Vendor stand-in stopped")
	})
}
