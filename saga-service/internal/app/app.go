package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/director74/order-saga/pkg/database"
	"github.com/director74/order-saga/pkg/errors"
	"github.com/director74/order-saga/pkg/messaging"
	"github.com/director74/order-saga/pkg/rabbitmq"
	"github.com/director74/order-saga/saga-service/config"
	httpController "github.com/director74/order-saga/saga-service/internal/controller/http"
	rabbitmqController "github.com/director74/order-saga/saga-service/internal/controller/rabbitmq"
	"github.com/director74/order-saga/saga-service/internal/entity"
	"github.com/director74/order-saga/saga-service/internal/repo"
	"github.com/director74/order-saga/saga-service/internal/usecase"
)

// App представляет приложение оркестратора саги
type App struct {
	config     *config.Config
	httpServer *http.Server
	db         *gorm.DB
	rabbitMQ   *rabbitmq.RabbitMQ
	watcher    *usecase.TimeoutWatcher
}

func NewApp(cfg *config.Config) (*App, error) {
	db, err := database.NewPostgresDB(cfg.Postgres)
	if err != nil {
		return nil, errors.AppendPrefix(err, "не удалось подключиться к базе данных")
	}

	if err := database.AutoMigrateWithCleanup(db, &entity.SagaInstance{}); err != nil {
		return nil, errors.AppendPrefix(err, "не удалось выполнить миграцию")
	}

	rmq, err := messaging.InitRabbitMQ(cfg.RabbitMQ)
	if err != nil {
		database.CloseDB(db)
		return nil, errors.AppendPrefix(err, "не удалось подключиться к RabbitMQ")
	}

	logger := log.New(os.Stdout, "[SagaService] ", log.LstdFlags)

	instRepo := repo.NewSagaInstanceRepository(db)
	orchestrator := usecase.NewOrchestrator(
		instRepo,
		rmq,
		cfg.Saga.Exchange,
		usecase.TransitionConfig{
			ValidateTimeout: cfg.Saga.ValidateTimeout,
			ReserveTimeout:  cfg.Saga.ReserveTimeout,
		},
		cfg.Saga.MaxConflictRetries,
		logger,
	)
	watcher := usecase.NewTimeoutWatcher(orchestrator, cfg.Saga.SweepInterval, logger)

	sagaConsumer := rabbitmqController.NewSagaConsumer(rmq, orchestrator, cfg.Saga.Exchange)
	if err := sagaConsumer.Setup(); err != nil {
		database.CloseDB(db)
		rmq.Close()
		return nil, errors.AppendPrefix(err, "ошибка при настройке консьюмера саги")
	}

	sagaHandler := httpController.NewSagaHandler(orchestrator)

	router := gin.Default()
	router.Use(errors.RecoveryMiddleware())
	router.Use(errors.ErrorMiddleware())
	router.NoRoute(errors.NotFoundHandler())
	router.NoMethod(errors.MethodNotAllowedHandler())
	sagaHandler.RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &App{
		config:     cfg,
		httpServer: httpServer,
		db:         db,
		rabbitMQ:   rmq,
		watcher:    watcher,
	}, nil
}

// Run запускает приложение
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Обходчик дедлайнов работает параллельно с консьюмером
	go a.watcher.Run(ctx)

	go func() {
		log.Printf("HTTP сервер запущен на порту %s", a.config.HTTP.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Ошибка запуска HTTP сервера: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Println("Получен сигнал завершения, закрываем приложение...")
	case <-ctx.Done():
		log.Println("Контекст завершен, закрываем приложение...")
	}

	cancel()
	return a.Shutdown()
}

// Shutdown корректно завершает работу приложения
func (a *App) Shutdown() error {
	errGroup := errors.NewErrorGroup()

	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.httpServer.Shutdown(ctx); err != nil {
			errGroup.AddPrefix(err, "ошибка при закрытии HTTP сервера")
		}
	}

	if a.rabbitMQ != nil {
		a.rabbitMQ.Close()
	}

	if a.db != nil {
		if err := database.CloseDB(a.db); err != nil {
			errGroup.AddPrefix(err, "ошибка при закрытии соединения с базой данных")
		}
	}

	if errGroup.HasErrors() {
		errors.LogError(errGroup, "Shutdown")
		return errGroup
	}

	log.Println("Приложение успешно завершено")
	return nil
}
