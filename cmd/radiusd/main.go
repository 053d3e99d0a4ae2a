package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/vitalvas/radiusd/pkg/config"
	"github.com/vitalvas/radiusd/pkg/server"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML or TOML config file")
	logLevel := flag.String("log-level", "", "Log level, overrides the config file")
	audit := flag.Bool("audit", false, "Write a JSON audit record per request to stdout")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-config <file>] [-log-level <level>] [-audit]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEvery setting can be overridden with %s_* environment variables,\n", config.EnvPrefix)
		fmt.Fprintf(os.Stderr, "e.g. %s_AUTH_PORT=11812 or %s_PROXY_RETRIES=3.\n", config.EnvPrefix, config.EnvPrefix)
	}

	flag.Parse()

	if err := run(*configPath, *logLevel, *audit); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, logLevel string, audit bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger := cfg.Logger()

	h, err := newHandler(cfg, logger)
	if err != nil {
		return err
	}

	shutdown := &server.ShutdownFlag{}
	stop := server.NotifyShutdown(shutdown, logger)
	defer stop()

	srvCfg, err := cfg.ServerConfig(h, shutdown, logger)
	if err != nil {
		return err
	}

	middlewares := []server.Middleware{server.LoggingMiddleware(logger)}
	if audit {
		middlewares = append(middlewares, auditMiddleware(os.Stdout))
	}

	srv, err := server.New(srvCfg, server.WithMiddleware(middlewares...))
	if err != nil {
		return err
	}

	logger.Infof("RADIUS server listening: auth=%v acct=%v", srv.Addrs(server.RoleAuth), srv.Addrs(server.RoleAcct))
	if srv.Proxy() != nil {
		logger.Infof("Proxying to %s from %v", h.upstream, srv.Addrs(server.RoleProxy))
	}

	return srv.Run()
}
