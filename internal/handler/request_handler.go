package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-eapproval-api/internal/models"
	"github.com/noah-isme/college-eapproval-api/internal/service"
	appErrors "github.com/noah-isme/college-eapproval-api/pkg/errors"
	"github.com/noah-isme/college-eapproval-api/pkg/response"
)

type approvalService interface {
	Create(ctx context.Context, input service.CreateRequestInput, actor *models.JWTClaims) (*models.ApprovalRequest, error)
	Decide(ctx context.Context, id string, action models.Action, actor *models.JWTClaims) (*service.DecisionResult, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ApprovalRequest, error)
	List(ctx context.Context, actor *models.JWTClaims, search string) ([]models.ApprovalRequest, models.DashboardKPIs, error)
}

type documentDownloader interface {
	Fetch(ctx context.Context, req *models.ApprovalRequest, actor *models.JWTClaims) ([]byte, string, error)
	SignedURL(req *models.ApprovalRequest, actor *models.JWTClaims) (string, time.Time, error)
	Redeem(ctx context.Context, token string) ([]byte, string, error)
}

// RequestHandler exposes REST endpoints for the approval workflow.
type RequestHandler struct {
	service   approvalService
	documents documentDownloader
}

// NewRequestHandler constructs the handler.
func NewRequestHandler(service approvalService, documents documentDownloader) *RequestHandler {
	return &RequestHandler{service: service, documents: documents}
}

// Create godoc
// @Summary Submit an approval request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body service.CreateRequestInput true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	var input service.CreateRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.service.Create(c.Request.Context(), input, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// List godoc
// @Summary List visible approval requests with dashboard KPIs
// @Tags Requests
// @Produce json
// @Param search query string false "Title or creator substring"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, kpis, err := h.service.List(c.Request.Context(), claims, c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, map[string]interface{}{
		"total":             kpis.Total,
		"pending_principal": kpis.PendingPrincipal,
		"approved":          kpis.Approved,
	})
}

// Get godoc
// @Summary Get a single approval request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request)
}

// Approve godoc
// @Summary Approve a request at the caller's stage
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/approve [post]
func (h *RequestHandler) Approve(c *gin.Context) {
	h.decide(c, models.ActionApprove)
}

// Reject godoc
// @Summary Reject a request at the caller's stage
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/reject [post]
func (h *RequestHandler) Reject(c *gin.Context) {
	h.decide(c, models.ActionReject)
}

func (h *RequestHandler) decide(c *gin.Context, action models.Action) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.Decide(c.Request.Context(), c.Param("id"), action, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.DocumentWarning != "" {
		response.JSONWithWarning(c, http.StatusOK, result.Request, result.DocumentWarning)
		return
	}
	response.JSON(c, http.StatusOK, result.Request)
}

// Download godoc
// @Summary Download the signed document for a fully approved request
// @Tags Requests
// @Produce application/pdf
// @Param id path string true "Request ID"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/document [get]
func (h *RequestHandler) Download(c *gin.Context) {
	if h.documents == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "document service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	data, filename, err := h.documents.Fetch(c.Request.Context(), request, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", data)
}

// Link godoc
// @Summary Issue a time-limited shareable download link for the signed document
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/document/link [get]
func (h *RequestHandler) Link(c *gin.Context) {
	if h.documents == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "document service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	token, expiresAt, err := h.documents.SignedURL(request, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"url":        fmt.Sprintf("/api/v1/documents/%s", token),
		"token":      token,
		"expires_at": expiresAt,
	})
}

// Redeem godoc
// @Summary Download a signed document via a shareable link token
// @Tags Requests
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{token} [get]
func (h *RequestHandler) Redeem(c *gin.Context) {
	if h.documents == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "document service not configured"))
		return
	}
	data, filename, err := h.documents.Redeem(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", data)
}
