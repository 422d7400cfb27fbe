package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bluelught/doctor-apt/internal/config"
	v1 "github.com/bluelught/doctor-apt/internal/handler/v1"
	"github.com/bluelught/doctor-apt/internal/repository"
	"github.com/bluelught/doctor-apt/internal/service"
	"github.com/bluelught/doctor-apt/pkg/auth"
	"github.com/bluelught/doctor-apt/pkg/database"
	"github.com/bluelught/doctor-apt/pkg/logger"
	"github.com/bluelught/doctor-apt/pkg/metrics"
	"github.com/bluelught/doctor-apt/pkg/tracer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("loading config: " + err.Error())
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("building logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("service exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	tp, err := tracer.Init(cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := database.Migrate(db, log); err != nil {
		return err
	}

	collector := metrics.NewCollector("doctor_apt")
	if sqlDB, dbErr := db.DB(); dbErr == nil {
		go func() {
			for range time.Tick(30 * time.Second) {
				collector.DBConnections.Set(float64(sqlDB.Stats().OpenConnections))
			}
		}()
	}

	jwtManager := auth.NewJWTManager(cfg.JWT)
	clock := service.SystemClock()

	userRepo := repository.NewUserRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	apptRepo := repository.NewAppointmentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	auditSvc := service.NewAuditService(auditRepo, collector, log)
	defer auditSvc.Shutdown()

	authSvc := service.NewAuthService(userRepo, jwtManager, log)
	scheduleSvc := service.NewScheduleService(scheduleRepo, auditSvc, clock, log)
	availabilitySvc := service.NewAvailabilityService(
		scheduleRepo, apptRepo, clock, cfg.Booking.MaxAvailabilityRangeDays, log)
	bookingSvc := service.NewBookingService(scheduleRepo, apptRepo, auditSvc, clock, log)
	apptSvc := service.NewAppointmentService(apptRepo, auditSvc, clock, log)

	router := v1.NewRouter(v1.RouterDeps{
		Config:     cfg,
		Log:        log,
		Collector:  collector,
		JWTManager: jwtManager,

		AuthHandler:        v1.NewAuthHandler(authSvc),
		ScheduleHandler:    v1.NewScheduleHandler(scheduleSvc, availabilitySvc, collector),
		AppointmentHandler: v1.NewAppointmentHandler(bookingSvc, apptSvc, collector, cfg.Booking.TransientRetries),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	log.Info("server stopped")
	return nil
}
