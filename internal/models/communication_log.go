package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Delivery statuses of a communication log
const (
	DeliveryPending = "PENDING"
	DeliverySent    = "SENT"
	DeliveryFailed  = "FAILED"
)

// CommunicationLog tracks one campaign message to one customer.
// Status only ever moves from PENDING to SENT or FAILED.
type CommunicationLog struct {
	ID            string         `json:"id" gorm:"primaryKey;type:uuid"`
	CustomerID    string         `json:"customerId" gorm:"type:uuid;not null;index"`
	CampaignName  string         `json:"campaignName" gorm:"type:varchar(100);not null;index:idx_comm_logs_campaign"`
	Message       string         `json:"message" gorm:"type:text;not null"`
	Status        string         `json:"status" gorm:"type:varchar(10);not null;default:'PENDING';index"`
	SentAt        time.Time      `json:"sentAt" gorm:"not null"`
	DeliveredAt   *time.Time     `json:"deliveredAt,omitempty"`
	FailureReason *string        `json:"failureReason,omitempty" gorm:"type:text"`
	AudienceRules datatypes.JSON `json:"audienceRules,omitempty" gorm:"type:jsonb" swaggertype:"array,object"`
	CreatedBy     string         `json:"createdBy" gorm:"type:uuid;not null;index"`
	RetryCount    int            `json:"retryCount" gorm:"not null;default:0"`
	LastRetryAt   *time.Time     `json:"lastRetryAt,omitempty"`
	CreatedAt     time.Time      `json:"createdAt" gorm:"index:idx_comm_logs_campaign"`
	UpdatedAt     time.Time      `json:"updatedAt"`

	Customer *Customer `json:"customer,omitempty" gorm:"foreignKey:CustomerID;references:ID"`
}

// TableName specifies the table name for the CommunicationLog model
func (CommunicationLog) TableName() string {
	return "communication_logs"
}

// BeforeCreate assigns an id before insert so that send tasks can reference it
func (l *CommunicationLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Status == "" {
		l.Status = DeliveryPending
	}
	return nil
}

// TerminalUpdate is the only mutation allowed on a pending log
type TerminalUpdate struct {
	Status        string
	DeliveredAt   time.Time
	FailureReason string
}

// DeliveryReceiptRequest is the vendor webhook payload
type DeliveryReceiptRequest struct {
	LogID  string `json:"logId" binding:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	Status string `json:"status" binding:"required" example:"SENT"`
	// DeliveredAt is accepted in any shape and ignored; the server clock stamps delivery
	DeliveredAt   json.RawMessage `json:"deliveredAt,omitempty" swaggertype:"string"`
	FailureReason string          `json:"failureReason,omitempty" example:"Network timeout"`
}

// VendorSendRequest is the payload posted to the message vendor
type VendorSendRequest struct {
	CustomerID  string `json:"customerId" binding:"required"`
	Message     string `json:"message"`
	LogID       string `json:"logId" binding:"required"`
	CallbackURL string `json:"callbackUrl" binding:"required,http_url"`
}

// DeliveryStatusEvent is streamed to operators when a log turns terminal
type DeliveryStatusEvent struct {
	LogID         string     `json:"logId"`
	CampaignName  string     `json:"campaignName"`
	CustomerID    string     `json:"customerId"`
	Status        string     `json:"status"`
	DeliveredAt   *time.Time `json:"deliveredAt,omitempty"`
	FailureReason *string    `json:"failureReason,omitempty"`
}
