package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv reads the .env file when present. Real deployments set the
// environment directly, so a missing file is not an error.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on process environment")
	}
}

func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func GetIntEnv(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid integer for %s=%q, using default %d", key, value, fallback)
		return fallback
	}
	return parsed
}

func GetInt64Env(key string, fallback int64) int64 {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Printf("Invalid integer for %s=%q, using default %d", key, value, fallback)
		return fallback
	}
	return parsed
}

// Reservation and wallet tuning knobs. Amounts are minor units (VND has no
// subunit, so the amount is the face value).

func ReservationHoldTTL() time.Duration {
	return time.Duration(GetIntEnv("RESERVATION_HOLD_MINUTES", 15)) * time.Minute
}

func ReservationPrepaidAmount() int64 {
	return GetInt64Env("RESERVATION_PREPAID_AMOUNT", 10000)
}

func ExpiryNotifyLead() time.Duration {
	return time.Duration(GetIntEnv("EXPIRY_NOTIFY_MINUTES", 5)) * time.Minute
}

func RefundPeriod() time.Duration {
	return time.Duration(GetIntEnv("REFUND_PERIOD_HOURS", 1)) * time.Hour
}

func MinWithdrawalAmount() int64 {
	return GetInt64Env("MIN_WITHDRAWAL_AMOUNT", 50000)
}

func WithdrawalProcessingTTL() time.Duration {
	return time.Duration(GetIntEnv("WITHDRAWAL_PROCESSING_TTL_MINUTES", 10)) * time.Minute
}

// WithdrawalSLA bounds how long a withdrawal may retry on insufficient
// balance before the sweep fails it and refunds the hold.
func WithdrawalSLA() time.Duration {
	return time.Duration(GetIntEnv("WITHDRAWAL_SLA_MINUTES", 60)) * time.Minute
}
