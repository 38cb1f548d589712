package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/dyluth/abyss/internal/daemon"
	"github.com/dyluth/abyss/pkg/abyss"
)

func main() {
	// 1. Load environment variables
	instanceName := os.Getenv("ABYSS_INSTANCE_NAME")
	redisURL := os.Getenv("REDIS_URL")
	configPath := os.Getenv("ABYSS_CONFIG")

	if instanceName == "" || redisURL == "" {
		fmt.Fprintf(os.Stderr, "Error: ABYSS_INSTANCE_NAME and REDIS_URL must be set\n")
		os.Exit(1)
	}
	if configPath == "" {
		configPath = "abyss.yml"
	}

	// 2. Parse Redis URL
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid REDIS_URL: %v\n", err)
		os.Exit(1)
	}

	// 3. Create event stream client
	client, err := abyss.NewClient(redisOpts, instanceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	// 4. Verify Redis connectivity
	ctx := context.Background()
	if err := client.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Redis not accessible: %v\n", err)
		os.Exit(1)
	}

	// 5. Assemble the daemon. The ambient item source is nil here: the
	// standalone daemon is fed through deposit commands and embedders wire
	// their own source.
	d, err := daemon.New(client, instanceName, configPath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to start: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Abyss daemon starting for instance '%s'\n", instanceName)

	// 6. Setup graceful shutdown and reload
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	// 7. Start daemon in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Run(runCtx)
	}()

	// 8. Wait for shutdown signal, reload signal or error
	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				fmt.Println("Received SIGHUP, reloading configuration...")
				if err := d.Reload(); err != nil {
					fmt.Fprintf(os.Stderr, "Reload failed: %v\n", err)
				}
				continue
			}

			fmt.Printf("Received signal %v, shutting down gracefully...\n", sig)
			cancel()
			<-errCh
			fmt.Println("Abyss daemon stopped")
			return

		case runErr := <-errCh:
			if runErr != nil {
				fmt.Fprintf(os.Stderr, "Daemon error: %v\n", runErr)
				os.Exit(1)
			}
			fmt.Println("Abyss daemon stopped")
			return
		}
	}
}
