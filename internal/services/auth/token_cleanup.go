package auth

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// TokenPurger deletes expired and revoked refresh tokens
type TokenPurger interface {
	CleanupTokens(ctx context.Context, now time.Time) (int64, error)
}

type TokenCleanupService struct {
	tokens   TokenPurger
	interval time.Duration
	stopChan chan bool
}

func NewTokenCleanupService(tokens TokenPurger, interval time.Duration) *TokenCleanupService {
	return &TokenCleanupService{
		tokens:   tokens,
		interval: interval,
		stopChan: make(chan bool),
	}
}

// Start starts the token cleanup service
func (s *TokenCleanupService) Start() {
	go s.run()
	logrus.Info("Token cleanup service started")
}

// Stop stops the token cleanup service
func (s *TokenCleanupService) Stop() {
	s.stopChan <- true
	logrus.Info("Token cleanup service stopped")
}

func (s *TokenCleanupService) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopChan:
			return
		}
	}
}

func (s *TokenCleanupService) cleanup() {
	deleted, err := s.tokens.CleanupTokens(context.Background(), time.Now())
	if err != nil {
		logrus.Errorf("Failed to cleanup tokens: %v", err)
		return
	}
	logrus.Infof("Token cleanup completed: %d token(s) removed", deleted)
}
