package services

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/onegreenvn/crm-campaign-backend/internal/apperror"
	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/sirupsen/logrus"
)

const maxRetryDelay = 30 * time.Second

// DeliveryWorker sends queued tasks to the vendor.
// A send the vendor accepts leaves the log PENDING until its receipt arrives;
// a send that fails after the allowed retries marks the log FAILED.
type DeliveryWorker struct {
	vendor     VendorSender
	delivery   *DeliveryService
	logs       CommunicationLogStore
	maxRetries int
	baseDelay  time.Duration
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewDeliveryWorker(vendor VendorSender, delivery *DeliveryService, logs CommunicationLogStore, maxRetries int, baseDelay time.Duration) *DeliveryWorker {
	return &DeliveryWorker{
		vendor:     vendor,
		delivery:   delivery,
		logs:       logs,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// Process is the DeliveryHandler of the delivery queue
func (w *DeliveryWorker) Process(ctx context.Context, task DeliveryTask) error {
	req := models.VendorSendRequest{
		CustomerID:  task.CustomerID,
		Message:     task.Message,
		LogID:       task.LogID,
		CallbackURL: task.CallbackURL,
	}

	var sendErr error
	for attempt := 0; ; attempt++ {
		sendErr = w.vendor.Send(ctx, req)
		if sendErr == nil {
			return nil
		}
		// shutting down: leave the log pending
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt >= w.maxRetries || !retryableSendError(sendErr) {
			break
		}

		logrus.Warnf("Send for log %s failed (attempt %d/%d): %v", task.LogID, attempt+1, w.maxRetries+1, sendErr)
		if err := w.logs.MarkRetry(ctx, task.LogID, w.now()); err != nil {
			logrus.Warnf("Failed to record retry for log %s: %v", task.LogID, err)
		}
		if err := w.sleep(ctx, w.backoff(attempt+1)); err != nil {
			return err
		}
	}

	reason := sendFailureReason(sendErr)
	logrus.Errorf("Failed to send message for log %s: %v", task.LogID, sendErr)
	if _, _, err := w.delivery.MarkTerminal(ctx, task.LogID, models.DeliveryFailed, reason); err != nil {
		var notFound *apperror.NotFoundError
		if errors.As(err, &notFound) {
			logrus.Warnf("Log %s disappeared before it could be marked failed", task.LogID)
			return nil
		}
		return err
	}
	return nil
}

// backoff is exponential with full jitter, capped at maxRetryDelay
func (w *DeliveryWorker) backoff(retry int) time.Duration {
	if w.baseDelay <= 0 {
		return 0
	}
	ceiling := w.baseDelay << uint(retry-1)
	if ceiling <= 0 || ceiling > maxRetryDelay {
		ceiling = maxRetryDelay
	}
	return time.Duration(rand.Int63n(int64(ceiling) + 1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
