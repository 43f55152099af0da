// scheiberd bridges a Scheiber marine CAN-bus lighting panel to MQTT /
// Home Assistant.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/eburi/scheiber-bridge/internal/canbus"
	"github.com/eburi/scheiber-bridge/internal/config"
	"github.com/eburi/scheiber-bridge/internal/logging"
	"github.com/eburi/scheiber-bridge/internal/mqttsink"
	"github.com/eburi/scheiber-bridge/internal/scheiber"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML configuration file")
	dryRun := flag.Bool("dry-run", false, "use a loopback CAN connection instead of a real interface")
	flag.Parse()

	fmt.Printf("scheiberd %s (%s)\n", version, commit)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, dryRun bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.Logging, version)
	logger.Info("starting scheiberd", "config", configPath)

	scheiberCfg, err := cfg.ToScheiberConfiguration()
	if err != nil {
		return fmt.Errorf("device configuration: %w", err)
	}

	conn, err := openTransport(cfg.CAN, dryRun)
	if err != nil {
		return fmt.Errorf("open CAN transport: %w", err)
	}

	sys, err := scheiber.NewSystem(scheiberCfg, conn, cfg.State.Path, logger)
	if err != nil {
		conn.Close()
		return fmt.Errorf("build system: %w", err)
	}

	mqttClient, err := mqttsink.Connect(cfg.MQTT)
	if err != nil {
		conn.Close()
		return fmt.Errorf("connect mqtt: %w", err)
	}
	mqttClient.SetLogger(logger)

	sink := mqttsink.NewSink(mqttClient, cfg.MQTT.TopicPrefix, logger)
	if err := sink.Attach(sys.Devices()); err != nil {
		mqttClient.Close()
		conn.Close()
		return fmt.Errorf("attach mqtt sink: %w", err)
	}

	if err := sys.Start(); err != nil {
		mqttClient.Close()
		conn.Close()
		return fmt.Errorf("start system: %w", err)
	}

	logger.Info("scheiberd ready")
	<-ctx.Done()

	logger.Info("shutdown signal received, closing")
	if err := sys.Close(); err != nil {
		logger.Error("system close failed", "error", err)
	}
	mqttClient.Close()

	logger.Info("scheiberd stopped")
	return nil
}

func openTransport(cfg config.CANConfig, dryRun bool) (scheiber.Transport, error) {
	if dryRun || cfg.DryRun || cfg.Interface == "" {
		conn := canbus.NewNullConn(true)
		conn.ReadOnly = cfg.ReadOnly
		return conn, nil
	}
	return canbus.OpenSocketCAN(cfg.Interface, cfg.ReadOnly)
}
