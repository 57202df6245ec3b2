package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/Brownie44l1/pollhttpd/internal/request"
	"github.com/Brownie44l1/pollhttpd/internal/router"
	"github.com/Brownie44l1/pollhttpd/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pollhttpd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "YAML config file")
		addr       = flag.String("addr", "", "listen address (host:port)")
		engine     = flag.String("engine", "", "event loop: poll or gnet")
		framing    = flag.String("framing", "", "incremental or oneshot")
		logLevel   = flag.String("log-level", "", "debug, info, warn or error")
		echo       = flag.Bool("echo", false, "answer unrouted requests with their own body")
	)
	flag.Parse()

	config := server.DefaultConfig()
	if *configPath != "" {
		loaded, err := server.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		config = loaded
	}

	// Flags win over the file
	if *addr != "" {
		config.Addr = *addr
	}
	if *engine != "" {
		config.Engine = *engine
	}
	if *framing != "" {
		config.Framing = *framing
	}
	if *logLevel != "" {
		config.Log.Level = *logLevel
	}

	logger, err := server.NewLogger(config.Log, os.Stderr)
	if err != nil {
		return err
	}

	metrics := server.NewMetrics()
	rt := newRouter(config.Body, *echo, metrics)

	srv, err := server.New(config,
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithBody(rt.Body),
	)
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-sigChan:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, server.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}

	printStats(srv.Stats())
	return nil
}

// newRouter serves the configured body everywhere except POST /echo, which
// mirrors the request, and GET /stats, which reports live counters.
func newRouter(body string, echo bool, metrics *server.Metrics) *router.Router {
	rt := router.New()
	rt.POST("/echo", func(r *request.Request, _ map[string]string) string {
		return string(r.Body)
	})
	rt.GET("/stats", func(*request.Request, map[string]string) string {
		s := metrics.Snapshot()
		return fmt.Sprintf("requests %d\naccepted %d\nrejected %d\nactive %d\n",
			s.RequestsTotal, s.ConnectionsAccepted, s.ConnectionsRejected, s.ActiveConnections)
	})
	rt.Fallback(func(r *request.Request, _ map[string]string) string {
		if echo {
			return string(r.Body)
		}
		return body
	})
	return rt
}

func printStats(stats server.MetricsSnapshot) {
	fmt.Printf("Final stats:\n")
	fmt.Printf("   Total requests:       %d\n", stats.RequestsTotal)
	fmt.Printf("   Connections accepted: %d\n", stats.ConnectionsAccepted)
	fmt.Printf("   Connections rejected: %d\n", stats.ConnectionsRejected)
	fmt.Printf("   4xx / 5xx:            %d / %d\n", stats.Errors4xx, stats.Errors5xx)
	fmt.Printf("   Write failures:       %d\n", stats.WriteFailures)
	fmt.Printf("   Average latency:      %s\n", stats.AverageLatency)

	codes := make([]int, 0, len(stats.ByStatus))
	for code := range stats.ByStatus {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("   status %d:           %d\n", code, stats.ByStatus[code])
	}
}
