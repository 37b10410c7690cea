package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	dbPath := flag.String("db", "duel.db", "Path to the sqlite database")
	publicURL := flag.String("public-url", "http://localhost:8080", "Public base URL for join links")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = log.Output(consoleWriter)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	db, err := OpenDB(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *dbPath).Msg("open database")
	}
	defer db.Close()

	supervisor := NewSupervisor(db)
	tokens := NewSessionTokens(db)
	hub := NewHub(supervisor, tokens)
	go hub.Run()

	mux := SetupRoutes(hub, *publicURL)
	server := &http.Server{Addr: *addr, Handler: mux}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", *addr).Msg("server starting")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-stop
	log.Info().Msg("shutting down")
	supervisor.Shutdown()
	server.Close()
}
