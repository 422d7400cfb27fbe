package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bluelught/doctor-apt/internal/config"
	"github.com/bluelught/doctor-apt/pkg/auth"
	"github.com/bluelught/doctor-apt/pkg/metrics"
)

type RouterDeps struct {
	Config     *config.Config
	Log        *zap.Logger
	Collector  *metrics.Collector
	JWTManager *auth.JWTManager

	AuthHandler        *AuthHandler
	ScheduleHandler    *ScheduleHandler
	AppointmentHandler *AppointmentHandler
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(deps.Log))
	r.Use(Metrics(deps.Collector))
	r.Use(RateLimit(deps.Config.RateLimit))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	api := r.Group("/api/v1")
	authed := api.Group("", RequireAuth(deps.JWTManager))

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", deps.AuthHandler.Register)
		authGroup.POST("/login", deps.AuthHandler.Login)
		authGroup.POST("/refresh", deps.AuthHandler.Refresh)
	}

	users := api.Group("/users")
	{
		users.GET("/doctors", deps.AuthHandler.ListDoctors)
		users.GET("/:id", deps.AuthHandler.GetUser)
	}

	schedules := api.Group("/schedules")
	{
		// Browsing a doctor's rules and open slots needs no login
		schedules.GET("/doctor/:id", deps.ScheduleHandler.ListDoctorRules)
		schedules.GET("/doctor/:id/available-slots", deps.ScheduleHandler.AvailableSlots)
	}

	authedSchedules := authed.Group("/schedules")
	{
		authedSchedules.POST("", deps.ScheduleHandler.CreateRule)
		authedSchedules.GET("/my", deps.ScheduleHandler.ListMyRules)
		authedSchedules.PUT("/:id", deps.ScheduleHandler.UpdateRule)
		authedSchedules.DELETE("/:id", deps.ScheduleHandler.DeleteRule)
	}

	appointments := authed.Group("/appointments")
	{
		appointments.POST("", deps.AppointmentHandler.Book)
		appointments.GET("/my", deps.AppointmentHandler.ListMine)
		appointments.GET("/:id", deps.AppointmentHandler.Get)
		appointments.POST("/:id/cancel", deps.AppointmentHandler.Cancel)
		appointments.POST("/:id/complete", deps.AppointmentHandler.Complete)
	}

	return r
}
