package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benmeehan/geo-locator/internal/service_registry"
	"github.com/benmeehan/geo-locator/internal/services"
	"github.com/benmeehan/geo-locator/internal/telemetry"
	"github.com/benmeehan/geo-locator/internal/utils"
	"github.com/benmeehan/geo-locator/pkg/file"
	"github.com/benmeehan/geo-locator/pkg/identity"
	"github.com/benmeehan/geo-locator/pkg/mqtt"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	// .env is optional, real environment variables win
	envErr := godotenv.Load()

	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig(*configPath, fileClient)
	if err != nil {
		bootLog := utils.NewLogger("info", false)
		bootLog.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
	}

	log := utils.NewLogger(config.Log.Level, config.Log.Pretty)
	if envErr != nil && !os.IsNotExist(envErr) {
		log.Warn().Err(envErr).Msg("Failed to read .env file")
	}

	telemetry.InitMetrics()
	if config.Telemetry.Tracing {
		shutdown, err := telemetry.InitTracer(version)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tracing")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to flush traces")
			}
		}()
	}

	var mqttClient mqtt.MQTTClient
	var deviceInfo services.IdentityProvider
	if config.MQTT.Enabled {
		info := identity.NewDeviceInfo(config.MQTT.IdentityFile, fileClient)
		if err := info.LoadOrCreate(); err != nil {
			log.Fatal().Err(err).Msg("Failed to load locator identity")
		}
		deviceInfo = info

		// Generate a unique MQTT Client ID by appending a UUID
		config.MQTT.ClientID = config.MQTT.ClientID + "-" + uuid.New().String()
		log.Info().Str("client_id", config.MQTT.ClientID).Str("locator_id", info.GetDeviceID()).Msg("Using MQTT client ID")

		client := mqtt.NewMqttService(fileClient)
		if err := client.Initialize(config.MQTT.Broker, config.MQTT.ClientID, config.MQTT.CACertificate); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
		}
		mqttClient = client
	}

	// Create a new service registry to manage services
	serviceRegistry := service_registry.NewServiceRegistry(mqttClient, log)

	if err := serviceRegistry.RegisterServices(config, deviceInfo); err != nil {
		log.Fatal().Err(err).Msg("Failed to register services")
	}

	if err := serviceRegistry.StartServices(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start services")
	}
	log.Info().Str("version", version).Str("addr", config.Server.Addr).Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		log.Error().Err(err).Msg("Some services failed to stop")
	}
}
