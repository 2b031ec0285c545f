package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/crm-campaign-backend/internal/apperror"
	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/onegreenvn/crm-campaign-backend/internal/services"
	"github.com/onegreenvn/crm-campaign-backend/internal/services/excel"
	"github.com/onegreenvn/crm-campaign-backend/internal/utils"
)

const sseHeartbeatInterval = 30 * time.Second

type CampaignHandler struct {
	campaignService *services.CampaignService
	audienceService *services.AudienceService
	historyService  *services.HistoryService
	excelService    *excel.Service
	sseHub          *services.SSEHub
}

func NewCampaignHandler(
	campaignService *services.CampaignService,
	audienceService *services.AudienceService,
	historyService *services.HistoryService,
	excelService *excel.Service,
	sseHub *services.SSEHub,
) *CampaignHandler {
	return &CampaignHandler{
		campaignService: campaignService,
		audienceService: audienceService,
		historyService:  historyService,
		excelService:    excelService,
		sseHub:          sseHub,
	}
}

// PreviewAudience godoc
// @Summary Preview audience size
// @Description Compile audience rules and count the matching customers
// @Tags campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.AudiencePreviewRequest true "Audience rules"
// @Success 200 {object} map[string]interface{} "success: true, data: models.AudiencePreviewResponse"
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/campaigns/audience/preview [post]
func (h *CampaignHandler) PreviewAudience(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req models.AudiencePreviewRequest
	if !bindJSON(c, &req) {
		return
	}

	preview, err := h.audienceService.PreviewAudience(c.Request.Context(), actor, req.AudienceRules)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, http.StatusOK, preview)
}

// CreateCampaign godoc
// @Summary Launch a campaign
// @Description Resolve the audience, persist one PENDING log per recipient and queue the sends
// @Tags campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateCampaignRequest true "Campaign"
// @Success 201 {object} map[string]interface{} "success: true, data: models.CampaignResult"
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req models.CreateCampaignRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.campaignService.CreateCampaign(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": fmt.Sprintf("Campaign created, %d messages queued", result.LogsCreated),
		"data":    result,
	})
}

// GetHistory godoc
// @Summary Campaign history
// @Description Delivery statistics per campaign and day for the current operator
// @Tags campaigns
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(10)
// @Success 200 {object} map[string]interface{} "success: true, data: []models.CampaignHistoryItem, pagination"
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/campaigns/history [get]
func (h *CampaignHandler) GetHistory(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	page, limit := utils.ParsePaginationFromQuery(c.Query("page"), c.Query("limit"), services.DefaultHistoryLimit)
	history, err := h.historyService.GetHistory(c.Request.Context(), actor, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	p := history.Pagination
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    history.Items,
		"pagination": gin.H{
			"currentPage":    p.CurrentPage,
			"totalPages":     p.TotalPages,
			"totalCampaigns": p.TotalCount,
			"hasNextPage":    p.HasNextPage,
			"hasPrevPage":    p.HasPrevPage,
			"limit":          p.Limit,
		},
	})
}

// ExportHistory godoc
// @Summary Export campaign history to Excel
// @Description Download the full campaign history of the current operator as an .xlsx file
// @Tags campaigns
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Success 200 {file} binary "Excel file"
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/campaigns/history/export [get]
func (h *CampaignHandler) ExportHistory(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	items, err := h.historyService.AllHistory(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.excelService.WriteCampaignHistory(&buf, items); err != nil {
		respondError(c, apperror.Internal("export campaign history", err))
		return
	}

	filename := fmt.Sprintf("campaign_history_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Cache-Control", "must-revalidate")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// StreamDeliveryStatus godoc
// @Summary Stream delivery status via Server-Sent Events (SSE)
// @Description Emits a "delivery" event whenever a message of the current operator is delivered or fails
// @Tags campaigns
// @Produce text/event-stream
// @Security BearerAuth
// @Param access_token query string false "Access token, for clients that cannot set headers"
// @Success 200 "SSE stream"
// @Router /api/v1/campaigns/stream [get]
func (h *CampaignHandler) StreamDeliveryStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // nginx

	clientChan := h.sseHub.RegisterClient(actor.UserID)
	defer h.sseHub.UnregisterClient(actor.UserID, clientChan)

	c.SSEvent("connected", gin.H{
		"userId":  actor.UserID,
		"message": "Connected to delivery stream",
	})
	c.Writer.Flush()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			logrus.Infof("SSE client disconnected: %s", actor.UserID)
			return
		case <-heartbeat.C:
			h.sseHub.SendHeartbeat(actor.UserID)
		case message, ok := <-clientChan:
			if !ok {
				return
			}
			if _, err := c.Writer.Write(message); err != nil {
				logrus.Errorf("Failed to write SSE message: %v", err)
				return
			}
			c.Writer.Flush()
		}
	}
}
