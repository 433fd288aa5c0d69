package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/mateusmacedo/parkit/internal/config"
	"github.com/mateusmacedo/parkit/internal/parking"
	"github.com/mateusmacedo/parkit/internal/parking/application"
	"github.com/mateusmacedo/parkit/internal/parking/domain"
	"github.com/mateusmacedo/parkit/internal/parking/infrastructure"
	pkgApp "github.com/mateusmacedo/parkit/pkg/application"
	pkgDomain "github.com/mateusmacedo/parkit/pkg/domain"
	pkgInfra "github.com/mateusmacedo/parkit/pkg/infrastructure"
	redisAdapter "github.com/mateusmacedo/parkit/pkg/infrastructure/redis/adapter"
	wmAdapter "github.com/mateusmacedo/parkit/pkg/infrastructure/watermill/adapter"
	zapAdapter "github.com/mateusmacedo/parkit/pkg/infrastructure/zaplogger/adapter"
)

const usage = `usage: parkit [command]

commands:
  shell   interactive parking menu (default)
  serve   HTTP API
  watch   log parking events consumed from the configured broker`

func main() {
	command := "shell"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if err := run(command); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(command string) error {
	switch command {
	case "shell", "serve", "watch":
	case "help", "-h", "--help":
		fmt.Println(usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	appLogger, err := zapAdapter.NewZapAppLogger(cfg.AppName, cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient redis.UniversalClient
	if cfg.NeedsRedis() {
		redisClient, err = redisAdapter.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			pkgApp.LogError(ctx, appLogger, "error connecting to redis", err, nil)
			return err
		}
		defer redisClient.Close()
	}

	if command == "watch" {
		return watch(ctx, cfg, redisClient, appLogger)
	}

	store, err := infrastructure.OpenStore(ctx, cfg, appLogger)
	if err != nil {
		pkgApp.LogError(ctx, appLogger, "error opening store", err, map[string]interface{}{"store": cfg.Store})
		return err
	}
	defer store.Close()

	eventBus, closeEvents, err := newEventBus(cfg, redisClient, appLogger)
	if err != nil {
		pkgApp.LogError(ctx, appLogger, "error creating event bus", err, map[string]interface{}{"events": cfg.Events})
		return err
	}
	defer closeEvents()

	var locker application.Locker = infrastructure.NewKeyedMutex()
	if cfg.Locker == config.LockerRedis {
		locker = infrastructure.NewRedisLocker(redisClient, cfg.LockTTL, appLogger)
	}

	commandBus := pkgInfra.NewSimpleCommandBus[pkgDomain.Command[application.ParkingCommandData], application.ParkingCommandData](appLogger)
	queryBus := pkgInfra.NewSimpleQueryBus[pkgDomain.Query[application.FindTicketData], application.FindTicketData, domain.Ticket](appLogger)

	slice := parking.NewParkingSlice(commandBus, queryBus, eventBus, store, locker, appLogger,
		application.WithIDGenerator(pkgInfra.NewUUIDGenerator()))

	if command == "serve" {
		return serve(ctx, cfg, slice, appLogger)
	}
	return slice.NewShell(os.Stdin, os.Stdout).Run(ctx)
}

func newEventBus(cfg *config.Config, redisClient redis.UniversalClient, appLogger pkgApp.AppLogger) (application.EventBus, func(), error) {
	if cfg.Events == config.EventsMemory {
		return pkgInfra.NewSimpleEventBus[pkgDomain.Event[application.TicketEventData], application.TicketEventData](appLogger), func() {}, nil
	}

	publisher, err := wmAdapter.NewPublisher(wmAdapter.PublisherConfig{
		Transport:    cfg.Events,
		ClientID:     cfg.AppName,
		KafkaBrokers: cfg.KafkaBrokers,
		RedisClient:  redisClient,
	}, wmAdapter.NewWatermillLoggerAdapter(appLogger))
	if err != nil {
		return nil, nil, err
	}

	closePublisher := func() {
		if err := publisher.Close(); err != nil {
			pkgApp.LogWarn(context.Background(), appLogger, "error closing event publisher", err, nil)
		}
	}
	return wmAdapter.NewEventBus[pkgDomain.Event[application.TicketEventData], application.TicketEventData](publisher, appLogger), closePublisher, nil
}

func serve(ctx context.Context, cfg *config.Config, slice *parking.ParkingSlice, appLogger pkgApp.AppLogger) error {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	slice.RegisterRoutes(router)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		pkgApp.LogInfo(ctx, appLogger, "server starting", map[string]interface{}{"addr": cfg.HTTPAddr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			pkgApp.LogError(ctx, appLogger, "error starting server", err, nil)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	pkgApp.LogInfo(context.Background(), appLogger, "shutting down server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		pkgApp.LogError(shutdownCtx, appLogger, "error shutting down server", err, nil)
		return err
	}
	pkgApp.LogInfo(context.Background(), appLogger, "server stopped", nil)
	return nil
}

// watch consumes both parking topics from the broker and logs every event.
func watch(ctx context.Context, cfg *config.Config, redisClient redis.UniversalClient, appLogger pkgApp.AppLogger) error {
	if cfg.Events != config.EventsKafka && cfg.Events != config.EventsRedis {
		return fmt.Errorf("watch needs PARKIT_EVENTS=kafka or redis, got %q", cfg.Events)
	}

	subscriber, err := wmAdapter.NewSubscriber(wmAdapter.SubscriberConfig{
		Transport:     cfg.Events,
		ClientID:      cfg.AppName,
		ConsumerGroup: cfg.AppName + "-watch",
		KafkaBrokers:  cfg.KafkaBrokers,
		RedisClient:   redisClient,
	}, wmAdapter.NewWatermillLoggerAdapter(appLogger))
	if err != nil {
		pkgApp.LogError(ctx, appLogger, "error creating event subscriber", err, map[string]interface{}{"events": cfg.Events})
		return err
	}
	defer subscriber.Close()

	handler := application.NewTicketEventHandler(appLogger)
	group, groupCtx := errgroup.WithContext(ctx)
	for _, topic := range []string{application.VehicleParkedEvent, application.VehicleExitedEvent} {
		topic := topic
		group.Go(func() error {
			return wmAdapter.Consume[application.TicketEventData](groupCtx, subscriber, topic, handler, appLogger)
		})
	}

	pkgApp.LogInfo(ctx, appLogger, "watching parking events", map[string]interface{}{"events": cfg.Events})
	return group.Wait()
}
