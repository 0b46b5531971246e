package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"taskboard/internal/server"
	"taskboard/internal/storage/flatfile"
	"taskboard/internal/util"
)

func main() {
	// A missing .env file is fine; flags and process env still apply.
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	addrFlag := flag.String("addr", util.EnvOrDefault("TASKBOARD_ADDR", ":8080"), "HTTP listen address")
	tasksFlag := flag.String("tasks", util.EnvOrDefault("TASKBOARD_TASKS_PATH", "data/tasks.json"), "Path to the task file (.json or .csv)")
	usersFlag := flag.String("users", util.EnvOrDefault("TASKBOARD_USERS_PATH", "data/users.json"), "Path to the users file")
	staticFlag := flag.String("static", util.EnvOrDefault("TASKBOARD_STATIC_DIR", "web"), "Directory with the frontend")
	strictFlag := flag.Bool("strict-load", util.EnvBool("TASKBOARD_STRICT_LOAD", false), "Fail startup on any repaired or dropped record")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	store, err := flatfile.Open(*tasksFlag, *usersFlag, flatfile.Options{StrictLoad: *strictFlag}, logger)
	if err != nil {
		logger.Error("unable to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	srv := server.New(store, logger, *staticFlag)

	httpServer := &http.Server{
		Addr:    *addrFlag,
		Handler: srv.Engine(),
	}

	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
