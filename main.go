package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/SeamMoney/aptos-consensus-streamer/api"
	"github.com/SeamMoney/aptos-consensus-streamer/core"
	"github.com/SeamMoney/aptos-consensus-streamer/env"
	"github.com/SeamMoney/aptos-consensus-streamer/helpers"
	"github.com/SeamMoney/aptos-consensus-streamer/metrics"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		logrus.Info(".env file not found")
	}
	envData := env.New()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if envData.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	contextLogger := logger.WithFields(logrus.Fields{
		"version": "1.0.0",
		"app":     envData.AppName,
		"network": envData.Network,
	})

	streamerApi := api.New(envData.ApiHost, envData.ApiPort)
	go streamerApi.Run()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	streamer := core.NewStreamer(envData, metrics.New(), contextLogger)
	helpers.HandleError(streamer.Run(ctx))
}
