package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aileronlabs/aileron/pkg/server"
)

// ServeCmd starts the HTTP API server.
type ServeCmd struct {
	Addr string `help:"Listen address (overrides the configured server.addr)."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := cli.buildApp(ctx, false)
	if err != nil {
		return err
	}
	defer app.Close()

	addr := c.Addr
	if addr == "" {
		addr = app.cfg.Server.Addr
	}

	srv := server.New(app.engine, addr, server.WithObservability(app.obs))

	host := displayAddr(srv.Address())
	fmt.Println("\nAileron server ready!")
	fmt.Printf("   Query:       http://%s/v1/query\n", host)
	fmt.Printf("   Collections: http://%s/v1/collections\n", host)
	fmt.Printf("   Health:      http://%s/healthz\n", host)
	if app.obs.MetricsEnabled() {
		fmt.Printf("   Metrics:     http://%s/metrics\n", host)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	return srv.Start(ctx)
}

// displayAddr renders a listen address as a dialable host for the
// startup printout.
func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
