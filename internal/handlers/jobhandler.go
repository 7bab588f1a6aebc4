package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/eis/internal/dtos"
)

type JobExtractor interface {
	ExtractJobJSON(ctx context.Context, pageText string) (string, error)
}

type JobHandler struct {
	Extractor JobExtractor
}

// NewJobHandler accepts a nil extractor; the endpoint then answers 503.
func NewJobHandler(extractor JobExtractor) *JobHandler {
	return &JobHandler{Extractor: extractor}
}

// ParseJob is the POST /jobs/extract endpoint
func (h *JobHandler) ParseJob(c *gin.Context) {
	if h.Extractor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "LLM extraction is not configured"})
		return
	}

	var req dtos.JobExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}

	extracted, err := h.Extractor.ExtractJobJSON(c.Request.Context(), req.RawHTML)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "AI Extraction failed: " + err.Error()})
		return
	}
	if !json.Valid([]byte(extracted)) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "AI Extraction returned invalid JSON"})
		return
	}

	// RawMessage keeps the model's JSON from being re-escaped as a string.
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"url":     req.URL,
		"data":    json.RawMessage(extracted),
	})
}
