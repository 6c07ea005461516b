package runtimecfg

import "time"

const (
	EngineDefaultProvider    = "openai"
	EngineDefaultModel       = "moonshotai/Kimi-K2-Instruct"
	EngineDefaultMaxTokens   = 8192
	EngineDefaultTemperature = 0.7
	EngineDefaultMaxRounds   = 10
)

const (
	ContextDefaultMaxTurns          = 15
	ContextDefaultFullFidelityTurns = 3
	ContextDefaultToolResultBudget  = 500
)

const (
	DeliveryDefaultPollInterval = 30 * time.Second
	DeliverySendTimeout         = 15 * time.Second
	BroadcastMaxRecipients      = 50
	BroadcastMinStaggerSeconds  = 15
	BroadcastMaxStaggerSeconds  = 300
	BroadcastDefaultStagger     = 45
)

const (
	BridgeDefaultURL      = "http://localhost:3010"
	BridgeStatusTimeout   = 5 * time.Second
	ServerDefaultAddr     = "127.0.0.1:3009"
	ServerShutdownGrace   = 5 * time.Second
	ServerMaxMessageLen   = 10000
	ServerMaxRewriteLen   = 2000
	ProviderSDKMaxRetries = 2
)
