package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// SSEHub fans delivery status events out to the operators who launched the campaigns
type SSEHub struct {
	// operator id -> client channels
	clients map[string]map[chan []byte]bool
	mu      sync.RWMutex
}

func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[string]map[chan []byte]bool),
	}
}

// RegisterClient registers a new stream for userID
func (h *SSEHub) RegisterClient(userID string) chan []byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	clientChan := make(chan []byte, 32)
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[chan []byte]bool)
	}
	h.clients[userID][clientChan] = true

	logrus.Infof("SSE client registered for user %s (total clients: %d)", userID, len(h.clients[userID]))
	return clientChan
}

// UnregisterClient removes and closes a stream
func (h *SSEHub) UnregisterClient(userID string, clientChan chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[userID]
	if clients == nil || !clients[clientChan] {
		return
	}
	delete(clients, clientChan)
	close(clientChan)
	if len(clients) == 0 {
		delete(h.clients, userID)
	}

	logrus.Infof("SSE client unregistered for user %s (remaining clients: %d)", userID, len(clients))
}

// Broadcast sends ev to every stream of userID without blocking
func (h *SSEHub) Broadcast(userID string, ev models.DeliveryStatusEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.clients[userID]
	if len(clients) == 0 {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		logrus.Errorf("Failed to marshal delivery event for SSE: %v", err)
		return
	}
	message := []byte(fmt.Sprintf("event: delivery\ndata: %s\n\n", payload))

	for clientChan := range clients {
		select {
		case clientChan <- message:
		default:
			logrus.Warnf("SSE client channel full, skipping event for user %s", userID)
		}
	}
}

// SendHeartbeat keeps idle streams of userID open
func (h *SSEHub) SendHeartbeat(userID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	heartbeat := []byte(fmt.Sprintf(": heartbeat %s\n\n", time.Now().Format(time.RFC3339)))
	for clientChan := range h.clients[userID] {
		select {
		case clientChan <- heartbeat:
		default:
		}
	}
}

// ClientCount returns the number of open streams of userID
func (h *SSEHub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
