// Command auctiond runs the SafeBid auction service.
//
// # Configuration File
//
// Create a YAML file with service settings:
//
//	listen_addr: ":8080"
//	metrics_addr: ":9090"
//	bid_timeout: 600s
//	nats_url: "nats://localhost:4222"
//	redis_addr: "localhost:6379"
//	postgres:
//	  host: localhost
//	  port: 5432
//	  user: safebid
//	  password: secret
//	  database: safebid
//
// NATS, Redis and Postgres are optional; leaving them unset runs the
// service with its in-memory state only.
//
// # Usage
//
//	go run ./cmd/auctiond --config=auctiond.yaml
//	go run ./cmd/auctiond --listen=:8080 --dev-encrypt
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RobertxMiller/SafeBid/api/httpserver"
	"github.com/RobertxMiller/SafeBid/auction"
	"github.com/RobertxMiller/SafeBid/cmd/common"
	"github.com/RobertxMiller/SafeBid/fhe"
	"github.com/RobertxMiller/SafeBid/services"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		listenAddr  = flag.String("listen", "", "HTTP listen address")
		metricsAddr = flag.String("metrics", "", "Metrics listen address")
		pprof       = flag.Bool("pprof", false, "Enable the pprof debug API")
		logJSON     = flag.Bool("log-json", false, "Log in JSON format")
		logDebug    = flag.Bool("log-debug", false, "Log at debug level")
		bidTimeout  = flag.Duration("bid-timeout", 0, "Auction inactivity window")
		devEncrypt  = flag.Bool("dev-encrypt", false, "Expose the development encrypt endpoint")
		natsURL     = flag.String("nats", "", "NATS broker URL for event publishing")
		redisAddr   = flag.String("redis", "", "Redis address for the snapshot cache")
	)
	flag.Parse()

	cfg, err := loadConfiguration(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	applyFlagOverrides(cfg, *listenAddr, *metricsAddr, *pprof, *logJSON,
		*logDebug, *bidTimeout, *devEncrypt, *natsURL, *redisAddr)

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfiguration(configPath string) (*common.Config, error) {
	if configPath != "" {
		return common.LoadConfig(configPath)
	}
	return common.DefaultConfig(), nil
}

func applyFlagOverrides(cfg *common.Config, listenAddr, metricsAddr string,
	pprof, logJSON, logDebug bool, bidTimeout time.Duration,
	devEncrypt bool, natsURL, redisAddr string) {

	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if pprof {
		cfg.EnablePprof = true
	}
	if logJSON {
		cfg.LogJSON = true
	}
	if logDebug {
		cfg.LogDebug = true
	}
	if bidTimeout > 0 {
		cfg.BidTimeout = bidTimeout
	}
	if devEncrypt {
		cfg.DevEncrypt = true
	}
	if natsURL != "" {
		cfg.NATSURL = natsURL
	}
	if redisAddr != "" {
		cfg.RedisAddr = redisAddr
	}
}

func run(cfg *common.Config) error {
	log := common.SetupLogger(cfg.LogJSON, cfg.LogDebug)

	capability, err := fhe.NewLocalCapability()
	if err != nil {
		return fmt.Errorf("creating encryption capability: %w", err)
	}

	house, err := auction.NewAuctionHouse(capability, auction.NewBalanceBook(), auction.Config{
		BidTimeout: cfg.BidTimeout,
		Log:        log,
	})
	if err != nil {
		return fmt.Errorf("creating auction house: %w", err)
	}

	svcCfg := &services.ServiceConfig{
		House:            house,
		Capability:       capability,
		Log:              log,
		EnableDevEncrypt: cfg.DevEncrypt,
	}

	if cfg.NATSURL != "" {
		publisher, err := services.NewNATSPublisher(cfg.NATSURL, log)
		if err != nil {
			return fmt.Errorf("connecting event publisher: %w", err)
		}
		defer publisher.Close()
		house.AddSink(publisher)
		log.Info("Event publishing enabled", "natsURL", cfg.NATSURL)
	}

	if cfg.Postgres.Host != "" {
		archiver, err := services.NewPostgresArchiver(&cfg.Postgres, log)
		if err != nil {
			return fmt.Errorf("connecting event archiver: %w", err)
		}
		defer archiver.Close()
		house.AddSink(archiver)
		svcCfg.Archiver = archiver
		log.Info("Event archiving enabled", "host", cfg.Postgres.Host)
	}

	if cfg.RedisAddr != "" {
		cache, err := services.NewSnapshotCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, house, log)
		if err != nil {
			return fmt.Errorf("connecting snapshot cache: %w", err)
		}
		defer cache.Close()
		house.AddSink(cache)
		svcCfg.Cache = cache
		log.Info("Snapshot cache enabled", "redisAddr", cfg.RedisAddr)
	}

	svc, err := services.NewAuctionService(svcCfg)
	if err != nil {
		return fmt.Errorf("creating auction service: %w", err)
	}

	srv, err := httpserver.New(&httpserver.Config{
		ListenAddr:               cfg.ListenAddr,
		MetricsAddr:              cfg.MetricsAddr,
		EnablePprof:              cfg.EnablePprof,
		Log:                      log,
		DrainDuration:            5 * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              10 * time.Second,
		WriteTimeout:             10 * time.Second,
	}, svc)
	if err != nil {
		return fmt.Errorf("creating HTTP server: %w", err)
	}

	srv.RunInBackground()
	log.Info("Auction service running", "listenAddr", cfg.ListenAddr, "authority", house.Authority().String())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("Shutting down")
	srv.Shutdown()
	return nil
}
