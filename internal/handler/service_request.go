package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"servicedesk/internal/domain"
	"servicedesk/internal/service"
)

// ServiceRequestHandler handles HTTP requests for service requests.
type ServiceRequestHandler struct {
	requestService *service.ServiceRequestService
}

// NewServiceRequestHandler creates a new ServiceRequestHandler.
func NewServiceRequestHandler(requestService *service.ServiceRequestService) *ServiceRequestHandler {
	return &ServiceRequestHandler{requestService: requestService}
}

// CreateServiceRequestRequest is the HTTP request body for submitting a
// service request. Any amount sent by the client is ignored.
type CreateServiceRequestRequest struct {
	ServiceType    string         `json:"serviceType" binding:"required"`
	SubService     string         `json:"subService" binding:"required"`
	FullName       string         `json:"fullName" binding:"required"`
	Email          string         `json:"email" binding:"required"`
	Phone          string         `json:"phone" binding:"required"`
	NationalID     string         `json:"nationalId" binding:"required"`
	ServiceDetails map[string]any `json:"serviceDetails"`
}

// CreateServiceRequestResponse is the HTTP response for submitting a service request.
type CreateServiceRequestResponse struct {
	ID          string `json:"id"`
	ServiceType string `json:"serviceType"`
	SubService  string `json:"subService"`
	Amount      int64  `json:"amount"`
	Status      string `json:"status"`
}

// ServiceRequestResponse is the full HTTP representation of a service request.
type ServiceRequestResponse struct {
	ID               string         `json:"id"`
	ServiceType      string         `json:"serviceType"`
	SubService       string         `json:"subService"`
	FullName         string         `json:"fullName"`
	Email            string         `json:"email"`
	Phone            string         `json:"phone"`
	NationalID       string         `json:"nationalId"`
	ServiceDetails   map[string]any `json:"serviceDetails"`
	Amount           int64          `json:"amount"`
	PaymentReference string         `json:"paymentReference,omitempty"`
	PaymentStatus    string         `json:"paymentStatus"`
	Status           string         `json:"status"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// UpdateStatusRequest is the HTTP request body for an operator status change.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// Create handles POST /service-request
func (h *ServiceRequestHandler) Create(c *gin.Context) {
	var req CreateServiceRequestRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}

	sr, err := h.requestService.Submit(c.Request.Context(), service.SubmitRequest{
		ServiceType:    req.ServiceType,
		SubService:     req.SubService,
		FullName:       req.FullName,
		Email:          req.Email,
		Phone:          req.Phone,
		NationalID:     req.NationalID,
		ServiceDetails: req.ServiceDetails,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, CreateServiceRequestResponse{
		ID:          sr.ID,
		ServiceType: string(sr.ServiceType),
		SubService:  sr.SubService,
		Amount:      sr.Amount,
		Status:      string(sr.Status),
	}, "Service request submitted successfully")
}

// Get handles GET /service-request/:id
func (h *ServiceRequestHandler) Get(c *gin.Context) {
	sr, err := h.requestService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toServiceRequestResponse(sr), "")
}

// UpdateStatus handles PATCH /admin/service-request/:id/status
func (h *ServiceRequestHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}

	sr, err := h.requestService.UpdateStatus(c.Request.Context(), c.Param("id"), domain.RequestStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toServiceRequestResponse(sr), "Status updated")
}

func toServiceRequestResponse(sr *domain.ServiceRequest) ServiceRequestResponse {
	details := sr.ServiceDetails
	if details == nil {
		details = map[string]any{}
	}
	return ServiceRequestResponse{
		ID:               sr.ID,
		ServiceType:      string(sr.ServiceType),
		SubService:       sr.SubService,
		FullName:         sr.FullName,
		Email:            sr.Email,
		Phone:            sr.Phone,
		NationalID:       sr.NationalID,
		ServiceDetails:   details,
		Amount:           sr.Amount,
		PaymentReference: sr.PaymentReference,
		PaymentStatus:    string(sr.PaymentStatus),
		Status:           string(sr.Status),
		CreatedAt:        sr.CreatedAt,
		UpdatedAt:        sr.UpdatedAt,
	}
}
