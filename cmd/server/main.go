package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/project-portal/internal/config"
	"github.com/iliyamo/project-portal/internal/handler"
	"github.com/iliyamo/project-portal/internal/kv"
	"github.com/iliyamo/project-portal/internal/middleware"
	"github.com/iliyamo/project-portal/internal/notify"
	"github.com/iliyamo/project-portal/internal/queue"
	"github.com/iliyamo/project-portal/internal/repository"
	"github.com/iliyamo/project-portal/internal/router"
	"github.com/iliyamo/project-portal/internal/service"
	"github.com/iliyamo/project-portal/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	rdb := config.NewRedisClient(cfg.StoreTimeout)
	defer func() { _ = rdb.Close() }()
	store := kv.NewRedisStore(rdb, cfg.StoreTimeout)

	// Outbound notifications go to the broker when one is configured and
	// are drained by the consumer below; otherwise they are only logged.
	var notifier service.Notifier = queue.LogNotifier{}
	if cfg.AMQPURL != "" {
		notifier = queue.NewPublisher(cfg.AMQPURL, cfg.NotifyQueue)
	}
	dispatch := service.NewDispatcher(notifier)

	projects := repository.NewProjectRepo(store)
	creds := service.NewCredentialService(
		projects,
		repository.NewCredentialRepo(store),
		utils.PasswordHasher{Pepper: cfg.PasswordPepper, Iterations: cfg.PBKDF2Iterations},
		dispatch,
	)
	creds.PublicBaseURL = cfg.PublicBaseURL
	creds.PortalURL = cfg.PortalURL
	phases := service.NewPhaseEngine(projects, dispatch, cfg.DeveloperEmail)
	payments := service.NewPaymentReconciler(projects, dispatch)
	messages := service.NewMessageService(projects, dispatch, cfg.DeveloperEmail)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumerDone := make(chan struct{})
	if cfg.AMQPURL != "" {
		var mailer notify.Mailer = notify.LogMailer{}
		if cfg.SMTP.Host != "" {
			mailer = notify.SMTPMailer{Cfg: notify.SMTPConfig{
				Host: cfg.SMTP.Host,
				Port: strconv.Itoa(cfg.SMTP.Port),
				User: cfg.SMTP.User,
				Pass: cfg.SMTP.Pass,
				From: cfg.SMTP.From,
			}}
		}
		consumer := &queue.Consumer{URL: cfg.AMQPURL, Queue: cfg.NotifyQueue, Handle: notify.Deliverer{Mailer: mailer}.Handle}
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("notify-consumer: stopped: %v", err)
			}
		}()
	} else {
		close(consumerDone)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	authHandler := handler.NewAuthHandler(cfg, creds)

	router.RegisterRoutes(e, store)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret, limiter)
	router.RegisterProject(e, handler.NewProjectHandler(projects, phases, messages), cfg.JWTSecret)
	router.RegisterInternal(e, handler.NewPaymentHandler(payments), cfg.InternalSecret)
	router.RegisterAdmin(e, authHandler, &handler.AdminHandler{
		Projects: projects,
		Creds:    creds,
		Phases:   phases,
		Payments: payments,
		Messages: messages,
	}, cfg.JWTSecret, limiter)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	dispatch.Wait()
	<-consumerDone
	log.Println("server exited")
}
