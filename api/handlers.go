package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"property-valuation/client/pricing"
	"property-valuation/services"
)

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

type valuationResponse struct {
	Available    bool     `json:"available"`
	Postcode     string   `json:"postcode"`
	LocalAverage *float64 `json:"local_average,omitempty"`
	Message      string   `json:"message,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handlePricing serves GET /api/v1/pricing/:postcode.
func (s *Server) handlePricing(c *gin.Context) {
	res, err := s.svc.GetPricingData(c.Request.Context(), c.Param("postcode"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleRecommendation serves GET /api/v1/pricing/:postcode/recommendation.
// An optional floor_area (sq ft) adds the total value.
func (s *Server) handleRecommendation(c *gin.Context) {
	var sqft float64
	if raw := c.Query("floor_area"); raw != "" {
		v, ok := parseFloorArea(raw)
		if !ok {
			writeError(c, &pricing.InvalidInputError{Field: "floor_area", Reason: "must be a positive number"})
			return
		}
		sqft = v
	}

	res, err := s.svc.GetPricingData(c.Request.Context(), c.Param("postcode"))
	if err != nil {
		writeError(c, err)
		return
	}

	rec := s.svc.GetRecommendedPrice(res.Series)
	if rec == nil {
		writeError(c, services.ErrNoRecommendation)
		return
	}
	if sqft > 0 {
		rec = services.WithTotalValue(rec, sqft*services.SqFtToSqm)
	}
	c.JSON(http.StatusOK, gin.H{
		"postcode":       res.Postcode,
		"source":         res.Source,
		"recommendation": rec,
	})
}

// handleValuation serves GET /api/v1/valuation. It always answers 200;
// an unavailable valuation is a normal outcome.
func (s *Server) handleValuation(c *gin.Context) {
	postcode := c.Query("postcode")
	resp := valuationResponse{
		Postcode: pricing.NormalizePostcode(postcode),
		Message:  services.NotAvailable,
	}

	sqft, ok := parseFloorArea(c.Query("floor_area"))
	if ok {
		if value, found := s.svc.GetLocalAverageValue(c.Request.Context(), postcode, sqft); found {
			resp.Available = true
			resp.LocalAverage = &value
			resp.Message = ""
		}
	}
	c.JSON(http.StatusOK, resp)
}

func parseFloorArea(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

// writeError maps pipeline errors to HTTP status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case pricing.IsInvalidInput(err):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case pricing.IsUpstream(err):
		c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error(), Retryable: true})
	case errors.Is(err, services.ErrNoRecommendation):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
