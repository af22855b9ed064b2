package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kevinfinalboss/VoidMod/api/models"
	"github.com/kevinfinalboss/VoidMod/internal/moderation"
)

type ReconcilerStatus interface {
	Status() (moderation.ReconcilerState, *moderation.Report)
}

type HealthController struct {
	startTime  time.Time
	reconciler ReconcilerStatus
}

func NewHealthController(startTime time.Time, reconciler ReconcilerStatus) *HealthController {
	return &HealthController{
		startTime:  startTime,
		reconciler: reconciler,
	}
}

func (hc *HealthController) CheckHealth(c *gin.Context) {
	state, last := hc.reconciler.Status()
	response := models.NewHealthResponse(time.Since(hc.startTime), state, last)
	c.JSON(http.StatusOK, response)
}
