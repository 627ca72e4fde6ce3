package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/xxxsen/ragchat/internal/pkg/errcode"
	"github.com/xxxsen/ragchat/internal/pkg/response"
	"github.com/xxxsen/ragchat/internal/pkg/timeutil"
	"github.com/xxxsen/ragchat/internal/service"
)

type AdminHandler struct {
	admin   *service.AdminService
	pricing *service.PricingService
}

func NewAdminHandler(admin *service.AdminService, pricing *service.PricingService) *AdminHandler {
	return &AdminHandler{admin: admin, pricing: pricing}
}

func timeRange(c *gin.Context) (int64, int64) {
	now := timeutil.NowUnix()
	from, _ := strconv.ParseInt(c.DefaultQuery("from", "0"), 10, 64)
	to, _ := strconv.ParseInt(c.DefaultQuery("to", strconv.FormatInt(now+1, 10)), 10, 64)
	return from, to
}

func (h *AdminHandler) Usage(c *gin.Context) {
	from, to := timeRange(c)
	totals, err := h.admin.UsageTotals(c.Request.Context(), from, to)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, totals)
}

func (h *AdminHandler) UsageByModel(c *gin.Context) {
	from, to := timeRange(c)
	items, err := h.admin.UsageByModel(c.Request.Context(), from, to)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"models": items})
}

func (h *AdminHandler) UsageByDay(c *gin.Context) {
	from, to := timeRange(c)
	items, err := h.admin.UsageByDay(c.Request.Context(), from, to)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"days": items})
}

func (h *AdminHandler) TopSources(c *gin.Context) {
	limit, _ := strconv.ParseUint(c.DefaultQuery("limit", "20"), 10, 32)
	items, err := h.admin.TopSources(c.Request.Context(), uint(limit))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"sources": items})
}

type setPricingRequest struct {
	ModelName       string          `json:"model_name"`
	InputCostPer1K  decimal.Decimal `json:"input_cost_per_1k_tokens"`
	OutputCostPer1K decimal.Decimal `json:"output_cost_per_1k_tokens"`
	EffectiveFrom   int64           `json:"effective_from"`
}

func (h *AdminHandler) SetPricing(c *gin.Context) {
	var req setPricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	pricing, err := h.pricing.SetPricing(c.Request.Context(), service.SetPricingInput{
		ModelName:       req.ModelName,
		InputCostPer1K:  req.InputCostPer1K,
		OutputCostPer1K: req.OutputCostPer1K,
		EffectiveFrom:   req.EffectiveFrom,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, pricing)
}

func (h *AdminHandler) ListPricing(c *gin.Context) {
	if modelName := c.Query("model"); modelName != "" {
		items, err := h.pricing.History(c.Request.Context(), modelName)
		if err != nil {
			handleError(c, err)
			return
		}
		response.Success(c, gin.H{"pricings": items})
		return
	}
	items, err := h.pricing.ListActive(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"pricings": items})
}
