package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/khadka27/assignmentghar-chat/config"
	chat_repo "github.com/khadka27/assignmentghar-chat/internal/repo/chat"
	"github.com/khadka27/assignmentghar-chat/internal/routers"
	"github.com/khadka27/assignmentghar-chat/internal/worker"
	"github.com/khadka27/assignmentghar-chat/internal/ws"
	"github.com/khadka27/assignmentghar-chat/state"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appState, err := state.InitAppState(ctx, stop)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application state")
	}
	defer appState.Close()

	gateway := chat_repo.NewChatRepo(appState)
	presence := ws.NewPresenceRegistry()

	hub := ws.NewHub(presence, gateway)
	defer hub.Close()
	log.Info().Msg("Websocket hub initialized")

	wsHandler := ws.NewHandler(hub, ws.QueryAuthenticator)
	log.Info().Msg("Websocket handler initialized")

	r := routers.NewRouter(appState, hub, wsHandler)

	workerPool := worker.NewWorkerPool(appState.Redis, 5, hub)
	workerPool.Start(ctx)
	workerPool.StartDLQWorker(ctx)

	server := &http.Server{
		Addr:         config.Conf.App.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Msgf("Starting server on http://localhost%s", config.Conf.App.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(fmt.Sprintf("ListenAndServe failed: %v", err))
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown initiated...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("Graceful shutdown failed: %v\n", err)
	} else {
		fmt.Println("Server exited gracefully.")
	}
	workerPool.Wait()
}
