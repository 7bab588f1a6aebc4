package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/justsurfingit/eis/internal/dtos"
)

// Scheduler is the part of the scheduling service the control API drives.
type Scheduler interface {
	Start(period time.Duration) bool
	Stop() bool
	Status() dtos.ServiceStatus
	RunOnce(ctx context.Context, lookbackDays int) (dtos.RunStats, bool)
}

type ServiceHandler struct {
	Scheduler     Scheduler
	DefaultPeriod time.Duration
}

func NewServiceHandler(s Scheduler, defaultPeriod time.Duration) *ServiceHandler {
	return &ServiceHandler{Scheduler: s, DefaultPeriod: defaultPeriod}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status is GET /service/status
func (h *ServiceHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.Scheduler.Status())
}

// Start is POST /service/start. An empty body uses the configured period.
func (h *ServiceHandler) Start(c *gin.Context) {
	var req dtos.StartServiceRequest
	if !bindOptional(c, &req) {
		return
	}
	period := h.DefaultPeriod
	if req.PeriodHours > 0 {
		period = time.Duration(req.PeriodHours * float64(time.Hour))
	}

	if !h.Scheduler.Start(period) {
		c.JSON(http.StatusConflict, gin.H{"error": "service is already running", "status": h.Scheduler.Status()})
		return
	}
	c.JSON(http.StatusAccepted, h.Scheduler.Status())
}

// Stop is POST /service/stop
func (h *ServiceHandler) Stop(c *gin.Context) {
	if !h.Scheduler.Stop() {
		c.JSON(http.StatusConflict, gin.H{"error": "service is not running"})
		return
	}
	c.JSON(http.StatusOK, h.Scheduler.Status())
}

// RunOnce is POST /service/run. It blocks until the run has finished and
// returns its statistics.
func (h *ServiceHandler) RunOnce(c *gin.Context) {
	var req dtos.RunOnceRequest
	if !bindOptional(c, &req) {
		return
	}

	stats, ok := h.Scheduler.RunOnce(c.Request.Context(), req.LookbackDays)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// bindOptional binds a JSON body when one was sent.
func bindOptional(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
	return false
}
