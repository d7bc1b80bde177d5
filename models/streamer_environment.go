package models

type StreamerEnvironment struct {
	AppName          string
	Debug            bool
	Network          string
	NodeApi          string
	PollIntervalMs   int
	LedgerCapacity   int
	BackfillBatch    int
	MaxDeltaPerCycle int
	ErrorThreshold   int
	StaleThresholdMs int
	WsLink           string
	WsKey            string
	ApiHost          string
	ApiPort          int
}
