package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/herbertwells/Volcano/internal/bridge"
	"github.com/herbertwells/Volcano/internal/config"
	"github.com/herbertwells/Volcano/internal/gatt"
	"github.com/herbertwells/Volcano/internal/session"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/volcanod/config.yaml)")
	address := flag.String("address", "", "device address, overrides the config file")
	scan := flag.Bool("scan", false, "scan for advertising devices and exit")
	scanTimeout := flag.Duration("scan-timeout", 10*time.Second, "how long to scan with -scan")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *address != "" {
		cfg.Device.Address = *address
	}

	log, err := buildLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	sugar := log.Sugar()

	transport := gatt.NewBluetoothTransport()
	if err := transport.Enable(); err != nil {
		sugar.Fatalw("enable bluetooth adapter", "error", err)
	}

	if *scan {
		runScan(transport, *scanTimeout)
		return
	}

	if err := cfg.Validate(); err != nil {
		sugar.Fatalw("invalid config", "error", err)
	}

	manager, err := session.New(transport, cfg.Device.Address,
		session.WithLogger(sugar),
		session.WithPollInterval(cfg.TemperatureInterval()),
		session.WithRSSIInterval(cfg.RSSIInterval()),
		session.WithConnectTimeout(cfg.ConnectTimeout()),
		session.WithBackoff(cfg.BackoffInitial(), cfg.BackoffMax()),
	)
	if err != nil {
		sugar.Fatalw("create session manager", "error", err)
	}

	// Log state transitions and fresh readings.
	var lastStatus session.Status
	manager.Register(func(snap session.Snapshot) {
		if snap.Status != lastStatus {
			lastStatus = snap.Status
			sugar.Infow("state change", "status", snap.Status.String(), "error", snap.LastError)
		}
		if snap.Temperature != nil {
			sugar.Debugw("temperature", "celsius", *snap.Temperature)
		}
	})

	var mqttBridge *bridge.MQTT
	if cfg.MQTT.Enabled {
		mqttBridge, err = bridge.New(manager, bridge.Options{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, sugar)
		if err != nil {
			sugar.Fatalw("connect mqtt bridge", "error", err)
		}
		mqttBridge.Start()
	}

	manager.Start()
	sugar.Infow("volcanod running", "address", cfg.Device.Address)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	sugar.Infow("shutting down", "signal", sig.String())

	manager.Stop()
	if mqttBridge != nil {
		mqttBridge.Close()
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if def := config.DefaultConfigPath(); def != "" {
		if _, err := os.Stat(def); err == nil {
			return config.Load(def)
		}
	}
	return config.FromEnv(), nil
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func runScan(transport gatt.Transport, timeout time.Duration) {
	fmt.Printf("scanning for %s...\n", timeout)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	found, err := transport.Scan(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan: %v\n", err)
		os.Exit(1)
	}
	for _, adv := range found {
		name := adv.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("%-20s %s  rssi=%d\n", name, adv.Address, adv.RSSI)
	}
	fmt.Printf("%d device(s) found\n", len(found))
}
