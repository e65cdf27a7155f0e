package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"servicedesk/internal/domain"
	"servicedesk/internal/service"
)

// PricingHandler handles HTTP requests for the price list.
type PricingHandler struct {
	pricingService *service.PricingService
}

// NewPricingHandler creates a new PricingHandler.
func NewPricingHandler(pricingService *service.PricingService) *PricingHandler {
	return &PricingHandler{pricingService: pricingService}
}

// PriceRequest is the HTTP request body for creating or updating a price.
type PriceRequest struct {
	ServiceType string `json:"serviceType" binding:"required"`
	SubService  string `json:"subService" binding:"required"`
	Price       int64  `json:"price" binding:"required"`
}

// PriceResponse is the HTTP representation of a pricing entry.
type PriceResponse struct {
	ServiceType string    `json:"serviceType"`
	SubService  string    `json:"subService"`
	Price       int64     `json:"price"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// List handles GET /pricing
func (h *PricingHandler) List(c *gin.Context) {
	entries, err := h.pricingService.ListPrices(c.Request.Context(), domain.ServiceType(c.Query("serviceType")))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]PriceResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toPriceResponse(e))
	}
	respondJSON(c, http.StatusOK, resp, "")
}

// Create handles POST /admin/pricing
func (h *PricingHandler) Create(c *gin.Context) {
	var req PriceRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}

	entry, err := h.pricingService.CreatePrice(c.Request.Context(), toPricingEntry(req))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toPriceResponse(entry), "Price created")
}

// Update handles PUT /admin/pricing
func (h *PricingHandler) Update(c *gin.Context) {
	var req PriceRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}

	entry, err := h.pricingService.UpdatePrice(c.Request.Context(), toPricingEntry(req))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPriceResponse(entry), "Price updated")
}

func toPricingEntry(req PriceRequest) domain.PricingEntry {
	return domain.PricingEntry{
		ServiceType: domain.ServiceType(req.ServiceType),
		SubService:  req.SubService,
		Price:       req.Price,
	}
}

func toPriceResponse(e *domain.PricingEntry) PriceResponse {
	return PriceResponse{
		ServiceType: string(e.ServiceType),
		SubService:  e.SubService,
		Price:       e.Price,
		UpdatedAt:   e.UpdatedAt,
	}
}
