package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"clipflow"
	"clipflow/internal/api/handler/endpoints"
	"clipflow/internal/api/models"
	"clipflow/internal/api/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/graceful"
	"github.com/gin-gonic/gin"
)

func main() {
	clipflow.InitConfig(".env")
	gin.SetMode(gin.ReleaseMode)

	if clipflow.GetConfig().Mode == "dev" {
		if err := clipflow.DB.AutoMigrate(
			&models.Workflow{},
			&models.Execution{},
			&models.AsyncJob{},
			&models.CreditTransaction{},
		); err != nil {
			clipflow.Logger.Fatal().Err(err).Msg("Failed to migrate database")
		}
		clipflow.Logger.Info().Msg("Database migrated successfully")
		gin.SetMode(gin.DebugMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	router, err := graceful.Default(graceful.WithAddr(clipflow.GetConfig().ApiPort))
	if err != nil {
		panic(err)
	}
	defer stop()
	defer router.Close()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Last-Event-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	engine := service.NewEngineFromConfig()
	defer engine.Stop()

	if n, err := engine.RecoverInterrupted(ctx); err != nil {
		clipflow.Logger.Error().Err(err).Msg("Failed to recover interrupted executions")
	} else if n > 0 {
		clipflow.Logger.Warn().Int("count", n).Msg("Marked interrupted executions as failed")
	}

	initAPI(router, engine)

	clipflow.Logger.Debug().Msgf("Starting CORE API on port %s", clipflow.GetConfig().ApiPort)
	if err = router.RunWithContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		clipflow.Logger.Fatal().Msg(err.Error())
		panic(err)
	}
}

func initAPI(router *graceful.Graceful, engine *service.Engine) {
	endpoints.WorkflowHandler(router, engine)
	endpoints.ExecutionHandler(router, engine)
	endpoints.JobHandler(router, engine)
	endpoints.CatalogHandler(router, engine)
	endpoints.CreditHandler(router, engine)
}
