package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type LedgerConfig struct {
	TxTimeout       time.Duration
	MaxRetries      int
	IdempotencyTTL  time.Duration
	KafkaBrokers    []string
	KafkaTopic      string
	MaxRequestBytes int64
}

func LoadLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		TxTimeout:       getEnvAsDuration("LEDGER_TX_TIMEOUT", 10*time.Second),
		MaxRetries:      getEnvAsInt("LEDGER_MAX_RETRIES", 3),
		IdempotencyTTL:  getEnvAsDuration("LEDGER_IDEMPOTENCY_TTL", 24*time.Hour),
		KafkaBrokers:    getEnvAsSlice("KAFKA_BROKERS", nil),
		KafkaTopic:      getEnv("KAFKA_LEDGER_TOPIC", "ledger_events"),
		MaxRequestBytes: int64(getEnvAsInt("LEDGER_MAX_REQUEST_BYTES", 1_048_576)),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}

	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
