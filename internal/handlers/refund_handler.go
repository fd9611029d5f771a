package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/service"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
)

// AccountHeader carries the acting account id. Authentication happens in
// front of this service.
const AccountHeader = "X-Account-ID"

// Refunds is the part of the orchestrator the HTTP layer drives.
type Refunds interface {
	RequestBuyerRefund(ctx context.Context, order *models.Order, event *models.Event, buyer *models.Account) (int64, error)
	ApproveBuyerRefundRequest(ctx context.Context, requestID int64, vendor *models.Account) (int64, error)
	RejectBuyerRefundRequest(ctx context.Context, requestID int64, vendor *models.Account, reason string) error
	RequestRefund(ctx context.Context, order *models.Order, event *models.Event, account *models.Account, payload models.RefundPayload) (int64, error)
	PendingRefundRequests(ctx context.Context, eventID int64, account *models.Account) ([]*models.RefundRequest, error)
	RefundRequest(ctx context.Context, id int64, account *models.Account) (*models.RefundRequest, error)
	RefundLog(ctx context.Context, id int64, account *models.Account) (*models.RefundLog, error)
	Summary(ctx context.Context, order *models.Order, event *models.Event, account *models.Account) (*service.RefundSummary, error)
}

type RefundHandler struct {
	commerce interfaces.CommerceRepository
	refunds  Refunds
}

func NewRefundHandler(commerce interfaces.CommerceRepository, refunds Refunds) *RefundHandler {
	return &RefundHandler{
		commerce: commerce,
		refunds:  refunds,
	}
}

type rejectBody struct {
	Reason string `json:"reason"`
}

func (h *RefundHandler) CreateRefundRequest(c *gin.Context) {
	account, order, event, ok := h.orderContext(c)
	if !ok {
		return
	}

	id, err := h.refunds.RequestBuyerRefund(c.Request.Context(), order, event, account)
	if err != nil {
		h.fail(c, "Failed to create refund request", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"refund_request_id": id,
		"status":            models.RequestRequested,
	})
}

func (h *RefundHandler) ApproveRefundRequest(c *gin.Context) {
	account, ok := h.account(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	logID, err := h.refunds.ApproveBuyerRefundRequest(c.Request.Context(), id, account)
	if err != nil {
		h.fail(c, "Failed to approve refund request", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"refund_request_id": id,
		"refund_log_id":     logID,
		"status":            models.RequestApproved,
	})
}

func (h *RefundHandler) RejectRefundRequest(c *gin.Context) {
	account, ok := h.account(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var body rejectBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.refunds.RejectBuyerRefundRequest(c.Request.Context(), id, account, body.Reason); err != nil {
		h.fail(c, "Failed to reject refund request", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"refund_request_id": id,
		"status":            models.RequestRejected,
	})
}

func (h *RefundHandler) CreateRefund(c *gin.Context) {
	account, order, event, ok := h.orderContext(c)
	if !ok {
		return
	}

	var payload models.RefundPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		telemetry.LoggerFor(c.Request.Context()).Warn("Error decoding refund payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	logID, err := h.refunds.RequestRefund(c.Request.Context(), order, event, account, payload)
	if err != nil {
		h.fail(c, "Failed to request refund", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"refund_log_id": logID,
		"status":        models.LogPending,
	})
}

func (h *RefundHandler) ListPendingRequests(c *gin.Context) {
	account, ok := h.account(c)
	if !ok {
		return
	}
	eventID, ok := paramID(c, "eventId")
	if !ok {
		return
	}

	reqs, err := h.refunds.PendingRefundRequests(c.Request.Context(), eventID, account)
	if err != nil {
		h.fail(c, "Failed to list refund requests", err)
		return
	}
	if reqs == nil {
		reqs = []*models.RefundRequest{}
	}

	c.JSON(http.StatusOK, gin.H{"refund_requests": reqs})
}

func (h *RefundHandler) GetRefundRequest(c *gin.Context) {
	account, ok := h.account(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	req, err := h.refunds.RefundRequest(c.Request.Context(), id, account)
	if err != nil {
		h.fail(c, "Failed to fetch refund request", err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *RefundHandler) GetRefundLog(c *gin.Context) {
	account, ok := h.account(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	log, err := h.refunds.RefundLog(c.Request.Context(), id, account)
	if err != nil {
		h.fail(c, "Failed to fetch refund log", err)
		return
	}
	c.JSON(http.StatusOK, log)
}

func (h *RefundHandler) GetRefundSummary(c *gin.Context) {
	account, order, event, ok := h.orderContext(c)
	if !ok {
		return
	}

	summary, err := h.refunds.Summary(c.Request.Context(), order, event, account)
	if err != nil {
		h.fail(c, "Failed to build refund summary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// account resolves the X-Account-ID header, writing 401 when it is missing
// or unknown.
func (h *RefundHandler) account(c *gin.Context) (*models.Account, bool) {
	id, err := strconv.ParseInt(c.GetHeader(AccountHeader), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid " + AccountHeader})
		return nil, false
	}

	account, err := h.commerce.LoadAccount(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to load account", err)
		return nil, false
	}
	if account == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown account"})
		return nil, false
	}
	return account, true
}

// orderContext loads the account, the :orderId order and the ?event_id
// event shared by the order-scoped routes.
func (h *RefundHandler) orderContext(c *gin.Context) (*models.Account, *models.Order, *models.Event, bool) {
	account, ok := h.account(c)
	if !ok {
		return nil, nil, nil, false
	}
	orderID, ok := paramID(c, "orderId")
	if !ok {
		return nil, nil, nil, false
	}
	eventID, err := strconv.ParseInt(c.Query("event_id"), 10, 64)
	if err != nil || eventID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_id query parameter is required"})
		return nil, nil, nil, false
	}

	ctx := c.Request.Context()
	order, err := h.commerce.LoadOrder(ctx, orderID)
	if err != nil {
		h.fail(c, "Failed to load order", err)
		return nil, nil, nil, false
	}
	if order == nil {
		h.fail(c, "Order not found", &service.NotFoundError{Entity: "order", ID: orderID})
		return nil, nil, nil, false
	}

	event, err := h.commerce.LoadEvent(ctx, eventID)
	if err != nil {
		h.fail(c, "Failed to load event", err)
		return nil, nil, nil, false
	}
	if event == nil {
		h.fail(c, "Event not found", &service.NotFoundError{Entity: "event", ID: eventID})
		return nil, nil, nil, false
	}

	return account, order, event, true
}

func (h *RefundHandler) fail(c *gin.Context, msg string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		telemetry.LoggerFor(c.Request.Context()).Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// StatusFor maps service errors to HTTP status codes.
func StatusFor(err error) int {
	var (
		ineligible *service.IneligibleError
		invalid    *service.InvalidAmountError
		exceeds    *service.ExceedsRefundableError
		denied     *service.AccessDeniedError
		notFound   *service.NotFoundError
		validation *service.ValidationError
	)
	switch {
	case errors.As(err, &ineligible), errors.As(err, &invalid), errors.As(err, &exceeds):
		return http.StatusUnprocessableEntity
	case errors.As(err, &denied):
		return http.StatusForbidden
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrOrderBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
