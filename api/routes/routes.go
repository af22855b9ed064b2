package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kevinfinalboss/VoidMod/api/controllers"
	"github.com/kevinfinalboss/VoidMod/internal/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Reconciler interface {
	controllers.ReconcilerStatus
	controllers.Sweeper
}

type Deps struct {
	StartTime   time.Time
	Reconciler  Reconciler
	Infractions controllers.InfractionFinder
	Logger      *logger.Logger
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	healthController := controllers.NewHealthController(deps.StartTime, deps.Reconciler)
	infractionController := controllers.NewInfractionController(deps.Infractions, deps.Reconciler, deps.Logger)

	router.GET("/health", healthController.CheckHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.GET("/guilds/:guildID/infractions/:id", infractionController.GetInfraction)
	api.POST("/reconcile", infractionController.TriggerSweep)
}
