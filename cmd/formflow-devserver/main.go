package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-formflow/internal/config"
	"github.com/goliatone/go-formflow/internal/devserver"
	"github.com/goliatone/go-formflow/internal/logging"
)

// passwordFlags collects repeated -password slug=secret values.
type passwordFlags map[string]string

func (p passwordFlags) String() string {
	pairs := make([]string, 0, len(p))
	for slug := range p {
		pairs = append(pairs, slug+"=***")
	}
	return strings.Join(pairs, ",")
}

func (p passwordFlags) Set(value string) error {
	slug, password, ok := strings.Cut(value, "=")
	if !ok || strings.TrimSpace(slug) == "" {
		return fmt.Errorf("expected slug=password, got %q", value)
	}
	p[strings.TrimSpace(slug)] = password
	return nil
}

func main() {
	passwords := passwordFlags{}
	configPath := flag.String("config", "", "YAML config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	formsDir := flag.String("forms", "", "directory of form definitions (overrides config)")
	submissions := flag.String("submissions", "", "append accepted submissions to this file")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	flag.Var(passwords, "password", "slug=password for a protected form (repeatable)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *formsDir != "" {
		cfg.Server.FormsDir = *formsDir
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := devserver.LoadDir(ctx, cfg.Server.FormsDir, logger)
	if err != nil {
		logger.WithError(err).Fatal("loading forms")
	}
	if catalog.Len() == 0 {
		logger.WithField("dir", cfg.Server.FormsDir).Warn("no forms published")
	}

	var sink io.Writer
	if *submissions != "" {
		file, err := os.OpenFile(*submissions, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logger.WithError(err).Fatal("opening submission log")
		}
		defer file.Close()
		sink = file
	}

	srv := devserver.New(catalog,
		devserver.WithPasswords(passwords),
		devserver.WithLogger(logger),
		devserver.WithSubmissionLog(sink),
	)
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdown); err != nil {
			logger.WithError(err).Warn("shutdown")
		}
	}()

	logger.WithFields(logrus.Fields{"addr": cfg.Server.Addr, "forms": catalog.Len()}).Info("devserver listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("serving")
	}
}
