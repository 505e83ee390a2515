package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"huddle/internal/chat"
	"huddle/internal/handlers"
	"huddle/internal/push"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and manages the server lifecycle so that
// deferred cleanup executes before the process exits. The only fatal
// condition is failing to bind the listener; everything else is logged
// and survived.
func run() error {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := chat.NewStore(log, config.HistoryFilepath)
	presence := chat.NewPresence()
	creds := chat.LoadCredentials(log, config.CredentialsFilepath)
	pushRegistry := push.NewRegistry(log, config.VapidPublicKey, config.VapidPrivateKey, config.VapidSubscriber)
	hub := chat.NewHub(log, store, presence, creds, pushRegistry)

	storeDone := make(chan struct{})
	go func() {
		defer close(storeDone)
		store.Run(ctx)
	}()
	go hub.Run(ctx)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Static("/", config.PublicDir)
	app.Get("/ws", websocket.New(handlers.Websocket(hub, config.SendBufferSize)))
	app.Post("/upload", handlers.Upload(log, filepath.Join(config.PublicDir, "uploads")))
	app.Post("/subscribe", handlers.Subscribe(log, pushRegistry))
	app.Get("/online", handlers.Online(presence))

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(address)
	}()
	log.Info("server listening", "address", address)

	select {
	case err := <-listenErr:
		return fmt.Errorf("listen on %s: %w", address, err)
	case <-ctx.Done():
		log.Info("shutting down")
		err := app.Shutdown()
		// Wait for the final history flush before exiting.
		<-storeDone
		return err
	}
}
