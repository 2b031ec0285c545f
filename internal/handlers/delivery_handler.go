package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/onegreenvn/crm-campaign-backend/internal/services"
)

// DeliveryHandler serves the vendor-facing endpoints
type DeliveryHandler struct {
	deliveryService *services.DeliveryService
	vendorService   *services.VendorService
}

func NewDeliveryHandler(deliveryService *services.DeliveryService, vendorService *services.VendorService) *DeliveryHandler {
	return &DeliveryHandler{
		deliveryService: deliveryService,
		vendorService:   vendorService,
	}
}

// DeliveryReceipt godoc
// @Summary Delivery receipt webhook
// @Description Called by the message vendor once a message is delivered or has failed
// @Tags delivery
// @Accept json
// @Produce json
// @Param X-Webhook-Secret header string false "Shared webhook secret, when configured"
// @Param request body models.DeliveryReceiptRequest true "Receipt"
// @Success 200 {object} map[string]interface{} "success: true, data: logId, status, deliveredAt"
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/delivery-receipt [post]
func (h *DeliveryHandler) DeliveryReceipt(c *gin.Context) {
	var req models.DeliveryReceiptRequest
	if !bindJSONWithMessage(c, &req, "logId and status are required") {
		return
	}

	log, err := h.deliveryService.HandleReceipt(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Delivery status updated",
		"data": gin.H{
			"logId":         log.ID,
			"status":        log.Status,
			"deliveredAt":   log.DeliveredAt,
			"failureReason": log.FailureReason,
		},
	})
}

// VendorSend godoc
// @Summary Stand-in vendor send
// @Description Accepts a message and later posts a simulated delivery receipt to callbackUrl
// @Tags delivery
// @Accept json
// @Produce json
// @Param request body models.VendorSendRequest true "Message to send"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/vendor/send [post]
func (h *DeliveryHandler) VendorSend(c *gin.Context) {
	var req models.VendorSendRequest
	if !bindJSONWithMessage(c, &req, "Invalid vendor request") {
		return
	}

	if err := h.vendorService.Accept(req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Message queued for delivery",
		"logId":   req.LogID,
	})
}
