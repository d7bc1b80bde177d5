package env

import (
	"flag"
	"os"
	"strconv"

	"github.com/SeamMoney/aptos-consensus-streamer/models"
)

const (
	DefaultPollIntervalMs   = 1000
	DefaultLedgerCapacity   = 50
	DefaultBackfillBatch    = 5
	DefaultMaxDeltaPerCycle = 15
	DefaultErrorThreshold   = 3
	DefaultStaleThresholdMs = 15000
)

func New() *models.StreamerEnvironment {
	appName := flag.String("app_name", "Aptos Consensus Streamer", "App name")
	debug := flag.Bool("debug", false, "Debug mode")
	network := flag.String("network", "mainnet", "Aptos network (mainnet|testnet|devnet)")
	nodeApi := flag.String("node_api", "", "Fullnode base URL override")
	pollInterval := flag.Int("poll_interval_ms", DefaultPollIntervalMs, "Base polling cadence in ms")
	ledgerCapacity := flag.Int("ledger_capacity", DefaultLedgerCapacity, "Max retained blocks")
	backfillBatch := flag.Int("backfill_batch", DefaultBackfillBatch, "Initial catch-up batch size")
	maxDelta := flag.Int("max_delta_per_cycle", DefaultMaxDeltaPerCycle, "Per-cycle new-block cap")
	errorThreshold := flag.Int("error_threshold", DefaultErrorThreshold, "Consecutive errors before disconnect")
	staleThreshold := flag.Int("stale_threshold_ms", DefaultStaleThresholdMs, "Staleness watchdog window in ms")
	wsLink := flag.String("ws_link", "", "Centrifugo API address")
	wsKey := flag.String("ws_key", "", "Centrifugo API key")
	apiHost := flag.String("api_host", "", "Metrics API host")
	apiPort := flag.Int("api_port", 8000, "Metrics API port")
	configFile := flag.String("config", "", "Env file")
	flag.Parse()

	envData := new(models.StreamerEnvironment)

	if *configFile != "" {
		config := NewViperConfig(*configFile)
		envData.AppName = config.GetString("app.name")
		envData.Debug = config.GetBool("app.debug")
		envData.Network = config.GetString("aptos.network")
		envData.NodeApi = config.GetString("aptos.nodeApi")
		envData.PollIntervalMs = config.GetInt("app.pollIntervalMs")
		envData.LedgerCapacity = config.GetInt("app.ledgerCapacity")
		envData.BackfillBatch = config.GetInt("app.backfillBatch")
		envData.MaxDeltaPerCycle = config.GetInt("app.maxDeltaPerCycle")
		envData.ErrorThreshold = config.GetInt("app.errorThreshold")
		envData.StaleThresholdMs = config.GetInt("app.staleThresholdMs")
		envData.WsLink = config.GetString("centrifugo.link")
		envData.WsKey = config.GetString("centrifugo.key")
		envData.ApiHost = config.GetString("streamerApi.host")
		envData.ApiPort = config.GetInt("streamerApi.port")
	} else {
		envData.AppName = *appName
		envData.Debug = *debug
		envData.Network = *network
		envData.NodeApi = *nodeApi
		envData.PollIntervalMs = *pollInterval
		envData.LedgerCapacity = *ledgerCapacity
		envData.BackfillBatch = *backfillBatch
		envData.MaxDeltaPerCycle = *maxDelta
		envData.ErrorThreshold = *errorThreshold
		envData.StaleThresholdMs = *staleThreshold
		envData.WsLink = *wsLink
		envData.WsKey = *wsKey
		envData.ApiHost = *apiHost
		envData.ApiPort = *apiPort
	}

	if v := os.Getenv("STREAMER_NETWORK"); v != "" {
		envData.Network = v
	}
	if v := os.Getenv("APTOS_NODE_API"); v != "" {
		envData.NodeApi = v
	}
	if v := os.Getenv("STREAMER_POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			envData.PollIntervalMs = n
		}
	}
	if v := os.Getenv("STREAMER_WS_LINK"); v != "" {
		envData.WsLink = v
	}
	if v := os.Getenv("STREAMER_WS_KEY"); v != "" {
		envData.WsKey = v
	}

	applyDefaults(envData)
	return envData
}

func applyDefaults(envData *models.StreamerEnvironment) {
	if envData.PollIntervalMs <= 0 {
		envData.PollIntervalMs = DefaultPollIntervalMs
	}
	if envData.LedgerCapacity <= 0 {
		envData.LedgerCapacity = DefaultLedgerCapacity
	}
	if envData.BackfillBatch <= 0 {
		envData.BackfillBatch = DefaultBackfillBatch
	}
	if envData.MaxDeltaPerCycle <= 0 {
		envData.MaxDeltaPerCycle = DefaultMaxDeltaPerCycle
	}
	if envData.ErrorThreshold <= 0 {
		envData.ErrorThreshold = DefaultErrorThreshold
	}
	if envData.StaleThresholdMs <= 0 {
		envData.StaleThresholdMs = DefaultStaleThresholdMs
	}
	if envData.Network == "" {
		envData.Network = "mainnet"
	}
}
