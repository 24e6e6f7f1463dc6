package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	TTL      time.Duration `envconfig:"CONVERSATION_TTL" default:"15m"`
	MaxTurns int           `envconfig:"CONVERSATION_MAX_TURNS" default:"10"`
	Tools    struct {
		MaxCalls int `envconfig:"CONVERSATION_TOOL_MAX_CALLS" default:"5"`
	}
}

// ChatModelConfig configures every persona model. Temperature and MaxTokens
// are defaults; a request may override both.
type ChatModelConfig struct {
	Model       string        `envconfig:"CHAT_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int           `envconfig:"CHAT_MAX_TOKENS" default:"2000"`
	Temperature float32       `envconfig:"CHAT_TEMPERATURE" default:"0.4"`
	Timeout     time.Duration `envconfig:"CHAT_TIMEOUT" default:"60s"`
	Retries     int           `envconfig:"CHAT_RETRIES" default:"1"`
}
