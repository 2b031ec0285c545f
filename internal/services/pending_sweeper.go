package services

import (
	"context"
	"time"

	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	pendingTimeoutReason = "Delivery receipt timeout"
	sweepBatchSize       = 500
)

// PendingSweeper fails logs whose receipt never arrived
type PendingSweeper struct {
	logs     CommunicationLogStore
	delivery *DeliveryService
	timeout  time.Duration
	interval time.Duration
	now      func() time.Time
	stopChan chan bool
}

func NewPendingSweeper(logs CommunicationLogStore, delivery *DeliveryService, timeout, interval time.Duration) *PendingSweeper {
	return &PendingSweeper{
		logs:     logs,
		delivery: delivery,
		timeout:  timeout,
		interval: interval,
		now:      time.Now,
		stopChan: make(chan bool),
	}
}

// Start starts the sweep loop
func (s *PendingSweeper) Start() {
	go s.run()
	logrus.Infof("Pending delivery sweeper started (timeout %s, every %s)", s.timeout, s.interval)
}

// Stop stops the sweep loop
func (s *PendingSweeper) Stop() {
	s.stopChan <- true
	logrus.Info("Pending delivery sweeper stopped")
}

func (s *PendingSweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopChan:
			return
		}
	}
}

// Sweep marks every log pending for longer than the timeout as FAILED and returns how many it moved
func (s *PendingSweeper) Sweep(ctx context.Context) int {
	cutoff := s.now().Add(-s.timeout)
	moved := 0
	for {
		stale, err := s.logs.FindStalePending(ctx, cutoff, sweepBatchSize)
		if err != nil {
			logrus.Errorf("Failed to find stale pending logs: %v", err)
			return moved
		}

		progressed := false
		for _, log := range stale {
			_, ok, err := s.delivery.MarkTerminal(ctx, log.ID, models.DeliveryFailed, pendingTimeoutReason)
			if err != nil {
				logrus.Errorf("Failed to time out log %s: %v", log.ID, err)
				continue
			}
			if ok {
				moved++
				progressed = true
			}
		}
		// a short batch is the last one; stop too if nothing moved so a failing row cannot spin the loop
		if len(stale) < sweepBatchSize || !progressed {
			break
		}
	}

	if moved > 0 {
		logrus.Infof("Pending delivery sweep completed: %d log(s) timed out", moved)
	} else {
		logrus.Debug("Pending delivery sweep completed: nothing to time out")
	}
	return moved
}
