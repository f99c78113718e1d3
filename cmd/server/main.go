package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/larkvale/textline/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	fmt.Println("Starting Textline server...")

	config := server.NewConfigFromEnv()
	server.SetConfig(config)

	// A corrupt users file is the one unrecoverable startup failure: the
	// process must not come up with ambiguous user data.
	store := server.NewFileStore(config.UsersFile)
	directory, err := server.NewUserDirectory(store)
	if err != nil {
		log.Fatalf("Failed to load user directory: %v", err)
	}
	log.Printf("Loaded %d registered users from %s", directory.Len(), config.UsersFile)

	core := server.NewCore(directory)
	mux := server.SetupRoutes(core)
	httpServer := server.CreateServer(config.Port, mux)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	case <-ctx.Done():
		log.Println("Shutdown signal received")
		if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
			log.Printf("HTTP shutdown: %v", err)
		}
		if err := core.Shutdown(shutdownTimeout); err != nil {
			log.Printf("Session shutdown: %v", err)
		}
	}
}
