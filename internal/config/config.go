package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Agent（ブラウジングエージェントのサイドカーサービス）
	AgentURL     string
	AgentTimeout time.Duration

	// Search
	SearchProduct string

	// Negotiation
	MaxConversationsPerRun int
	ConversationInterval   time.Duration
	ConversationDelay      time.Duration
	PriceFlexibility       int
	OfferMinSane           int
	OfferMaxSane           int
	StaleAfter             time.Duration

	// Offers
	MaxMessagesPerSession int
	OfferListingLimit     int
	OfferDelay            time.Duration

	// Pricing
	PricingSourceURL string
	MarginPercent    float64

	// Negotiation script
	ScriptPath string

	// Notification
	NotifyWebhookURL string

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.AgentURL = os.Getenv("AGENT_URL")
	if cfg.AgentURL == "" {
		missing = append(missing, "AGENT_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AgentTimeout = getEnvDuration("AGENT_TIMEOUT", 10*time.Minute)
	cfg.SearchProduct = getEnvString("SEARCH_PRODUCT", "iPhone 13 Pro Max")
	cfg.MaxConversationsPerRun = getEnvInt("MAX_CONVERSATIONS_PER_RUN", 10)
	cfg.ConversationInterval = getEnvDuration("CONVERSATION_INTERVAL", 5*time.Minute)
	cfg.ConversationDelay = getEnvDuration("CONVERSATION_DELAY", 3*time.Second)
	cfg.PriceFlexibility = getEnvInt("PRICE_FLEXIBILITY", 20)
	cfg.OfferMinSane = getEnvInt("OFFER_MIN_SANE", 50)
	cfg.OfferMaxSane = getEnvInt("OFFER_MAX_SANE", 2000)
	cfg.StaleAfter = getEnvDuration("STALE_AFTER", 14*24*time.Hour)
	cfg.MaxMessagesPerSession = getEnvInt("MAX_MESSAGES_PER_SESSION", 10)
	cfg.OfferListingLimit = getEnvInt("OFFER_LISTING_LIMIT", 50)
	cfg.OfferDelay = getEnvDuration("OFFER_DELAY", 10*time.Second)
	cfg.PricingSourceURL = getEnvString("PRICING_SOURCE_URL", "")
	cfg.MarginPercent = getEnvFloat("MARGIN_PERCENT", 20.0)
	cfg.ScriptPath = getEnvString("SCRIPT_PATH", "negotiation_script.md")
	cfg.NotifyWebhookURL = getEnvString("NOTIFY_WEBHOOK_URL", "")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
