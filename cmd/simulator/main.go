// Package main runs the interbank-CCP discrete-time simulation end to end:
// load configuration, build the bank/CCP population, run the tick loop, and
// report the summary. Grounded on the teacher's producer/main.go flag
// parsing, signal handling, and graceful-shutdown shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/paynet/interbank-ccp/internal/config"
	"github.com/paynet/interbank-ccp/internal/eventbus"
	"github.com/paynet/interbank-ccp/internal/fabric"
	"github.com/paynet/interbank-ccp/internal/metrics"
	"github.com/paynet/interbank-ccp/internal/ops"
	"github.com/paynet/interbank-ccp/internal/scheduler"
	"github.com/redis/go-redis/v9"
)

func main() {
	fs := flag.NewFlagSet("simulator", flag.ExitOnError)
	healthAddr := fs.String("health", ":8081", "ops /health, /ready and /metrics server address")
	redisAddr := fs.String("redis", "", "Redis address for the production state fabric (empty = in-memory)")
	kafkaBroker := fs.String("kafka-broker", "", "Kafka broker address for the intents:queue analytics mirror (empty = disabled)")

	var cfg config.Config
	configPath, applyOverrides := config.FlagSet(fs, &cfg)
	fs.Parse(os.Args[1:])

	loaded, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("simulator: %v", err)
	}
	cfg = loaded
	applyOverrides()

	opsServer := ops.NewServer()
	go opsServer.ListenAndServe(*healthAddr)
	opsServer.MarkConfigLoaded()

	metricsReg := metrics.NewRegistry(prometheus.DefaultRegisterer)

	opts := []scheduler.Option{
		scheduler.WithTickObserver(opsServer.SetTick),
	}

	if *redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: *redisAddr})
		opts = append(opts, scheduler.WithStore(fabric.NewRedisStore(client)))
	}

	var mirror *eventbus.Mirror
	if *kafkaBroker != "" {
		mirror = eventbus.NewMirror(*kafkaBroker, "interbank-intents")
		defer mirror.Close()
		opts = append(opts, scheduler.WithEventBusMirror(mirror))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("[simulator] shutdown signal received...")
		cancel()
	}()

	sched, err := scheduler.New(ctx, cfg, metricsReg, opts...)
	if err != nil {
		log.Fatalf("simulator: setup: %v", err)
	}
	opsServer.MarkFabricReady(true)

	log.Printf("[simulator] running %d banks, %d ticks, network=%s, seed=%d",
		cfg.NBanks, cfg.Steps, cfg.NetworkType, cfg.Seed)

	if err := sched.Run(ctx); err != nil {
		log.Fatalf("simulator: run: %v", err)
	}

	fmt.Printf("ticks=%d defaults=%d active_banks=%d freeze_events=%d panic_ticks=%d total_exposure=%.2f\n",
		sched.Summary.TicksRun, sched.Summary.DefaultsTotal, sched.Summary.FinalActiveBanks,
		sched.Summary.FreezeEvents, sched.Summary.PanicModeTicks, sched.Summary.FinalTotalExposure)
}
