package models

import (
	"time"

	"github.com/onegreenvn/crm-campaign-backend/internal/segmentation"
)

// Actor identifies the operator on whose behalf an operation runs
type Actor struct {
	UserID   string
	Username string
}

// NamePlaceholder is replaced by the recipient's name, first occurrence only
const NamePlaceholder = "{name}"

// AudiencePreviewRequest represents the request to size an audience
type AudiencePreviewRequest struct {
	AudienceRules []segmentation.Rule `json:"audienceRules"`
}

// AudiencePreviewResponse is the sized audience
type AudiencePreviewResponse struct {
	AudienceSize int64               `json:"audienceSize"`
	Rules        []segmentation.Rule `json:"rules"`
}

// CustomerSearchRequest searches customers with rules joined by one operator
type CustomerSearchRequest struct {
	Rules    []segmentation.Rule          `json:"rules"`
	Operator segmentation.LogicalOperator `json:"operator,omitempty" example:"AND"`
}

// CustomerSearchResponse lists matching customers and a short preview
type CustomerSearchResponse struct {
	Customers []AudienceMember `json:"customers"`
	Count     int              `json:"count"`
	Preview   []AudienceMember `json:"preview"`
}

// AudienceMember is a resolved campaign recipient
type AudienceMember struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Phone      string  `json:"phone"`
	TotalSpent float64 `json:"totalSpent"`
	OrderCount int64   `json:"orderCount"`
}

// CreateCampaignRequest represents the request to launch a campaign
type CreateCampaignRequest struct {
	Name          string              `json:"name" binding:"required,min=3,max=100" example:"Summer win-back"`
	Message       string              `json:"message" binding:"required,min=10,max=500" example:"Hi {name}, here is 10% off your next order"`
	AudienceRules []segmentation.Rule `json:"audienceRules"`
}

// CampaignResult is returned once all logs of a campaign are persisted
type CampaignResult struct {
	CampaignName string `json:"campaignName"`
	AudienceSize int    `json:"audienceSize"`
	Message      string `json:"message"`
	LogsCreated  int    `json:"logsCreated"`
}

// CampaignHistoryRow is the raw per (campaign, day) aggregate
type CampaignHistoryRow struct {
	CampaignName  string
	CampaignDate  time.Time
	TotalSent     int64
	Delivered     int64
	Failed        int64
	Pending       int64
	LastSentAt    time.Time
	SampleMessage string
	AudienceRules []byte
}

// CampaignHistoryItem is one entry of the campaign history
type CampaignHistoryItem struct {
	CampaignName  string              `json:"campaignName"`
	Date          string              `json:"date" example:"2025-06-15"`
	AudienceSize  int64               `json:"audienceSize"`
	Delivered     int64               `json:"delivered"`
	Failed        int64               `json:"failed"`
	Pending       int64               `json:"pending"`
	DeliveryRate  float64             `json:"deliveryRate" example:"66.67"`
	LastSentAt    time.Time           `json:"lastSentAt"`
	SampleMessage string              `json:"sampleMessage"`
	AudienceRules []segmentation.Rule `json:"audienceRules,omitempty"`
}

// Pagination is the page metadata of list responses
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalCount  int64 `json:"totalCount"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
	Limit       int   `json:"limit"`
}

// CampaignHistoryPage is a page of campaign history
type CampaignHistoryPage struct {
	Items      []CampaignHistoryItem `json:"items"`
	Pagination Pagination            `json:"pagination"`
}
