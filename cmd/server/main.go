package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vitatrack/auth-server/grants"
	"github.com/vitatrack/auth-server/internal/config"
	apperrors "github.com/vitatrack/auth-server/internal/errors"
	"github.com/vitatrack/auth-server/loginflow"
	"github.com/vitatrack/auth-server/provider"
	"github.com/vitatrack/auth-server/secrets"
	"github.com/vitatrack/auth-server/server"
	"github.com/vitatrack/auth-server/sessions"
	"github.com/vitatrack/auth-server/storage/sqlite"
	"github.com/vitatrack/auth-server/users"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("recovered from panic")
			returnError = apperrors.Wrapf(apperrors.ErrInternal, "panic recovered")
		}
	}()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("config.New: %w", err)
	}
	configureLogging(cfg.GetEnv())
	displayAppname(cfg.GetAppName())

	store, err := sqlite.Open(cfg.GetDatabasePath())
	if err != nil {
		return fmt.Errorf("sqlite.Open: %w", err)
	}
	defer store.Close()

	srv, err := buildServer(cfg, store)
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: cfg.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	return shutdown(httpServer)
}

func buildServer(cfg config.Config, store *sqlite.Store) (*server.Server, error) {
	codec, err := secrets.NewCodec(cfg.GetEncryptionKey())
	if err != nil {
		return nil, fmt.Errorf("secrets.NewCodec: %w", err)
	}
	registry, err := provider.NewRegistry(store.Providers(), codec)
	if err != nil {
		return nil, fmt.Errorf("provider.NewRegistry: %w", err)
	}
	factory, err := provider.NewSessionFactory(registry, cfg.GetFrontendURL())
	if err != nil {
		return nil, fmt.Errorf("provider.NewSessionFactory: %w", err)
	}

	userRepo := store.Users()
	provisioner, err := users.NewProvisioner(userRepo)
	if err != nil {
		return nil, fmt.Errorf("users.NewProvisioner: %w", err)
	}
	engine, err := grants.NewEngine(store.Grants(), userRepo)
	if err != nil {
		return nil, fmt.Errorf("grants.NewEngine: %w", err)
	}

	sessionRepo := sessions.NewInMemoryRepo()
	flows, err := loginflow.NewController(factory, registry, sessionRepo, provisioner, userRepo)
	if err != nil {
		return nil, fmt.Errorf("loginflow.NewController: %w", err)
	}
	tokens, err := sessions.NewTokenIssuer(cfg.GetSessionSecret(), cfg.GetBaseURL(), cfg.GetSessionExpiry())
	if err != nil {
		return nil, fmt.Errorf("sessions.NewTokenIssuer: %w", err)
	}

	return server.New(cfg, server.Deps{
		Flows:    flows,
		Grants:   engine,
		Registry: registry,
		Factory:  factory,
		Sessions: sessionRepo,
		Users:    userRepo,
		Tokens:   tokens,
	})
}

func configureLogging(env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if env == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
