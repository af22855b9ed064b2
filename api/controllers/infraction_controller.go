package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kevinfinalboss/VoidMod/api/models"
	"github.com/kevinfinalboss/VoidMod/internal/logger"
	domain "github.com/kevinfinalboss/VoidMod/internal/models"
	"github.com/kevinfinalboss/VoidMod/internal/moderation"
	"go.uber.org/zap"
)

type InfractionFinder interface {
	FindByID(ctx context.Context, id string) (*domain.Infraction, error)
}

type Sweeper interface {
	Sweep(ctx context.Context) (moderation.Report, error)
}

type InfractionController struct {
	store   InfractionFinder
	sweeper Sweeper
	logger  *logger.Logger
}

func NewInfractionController(store InfractionFinder, sweeper Sweeper, l *logger.Logger) *InfractionController {
	return &InfractionController{
		store:   store,
		sweeper: sweeper,
		logger:  l.Named("api"),
	}
}

// GetInfraction answers 404 for ids that belong to another guild.
func (ic *InfractionController) GetInfraction(c *gin.Context) {
	guildID := c.Param("guildID")

	inf, err := ic.store.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		ic.logger.Error("Failed to load infraction", zap.String("guild_id", guildID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load infraction"})
		return
	}
	if inf == nil || inf.GuildID != guildID {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "infraction not found"})
		return
	}

	c.JSON(http.StatusOK, inf)
}

// TriggerSweep runs one reconciler pass synchronously. Item failures still
// answer 200 with the report; only a sweep that never ran is an error.
func (ic *InfractionController) TriggerSweep(c *gin.Context) {
	report, err := ic.sweeper.Sweep(c.Request.Context())
	switch {
	case errors.Is(err, moderation.ErrSweepInProgress):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, moderation.ErrDueQuery):
		ic.logger.Error("Manual sweep failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	resp := models.SweepResponse{Report: report}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}
