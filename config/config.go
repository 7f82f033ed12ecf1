package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/yeremiapane/delivery-app/pricing"
)

// Config is everything the backend reads from the environment.
type Config struct {
	Port    string
	GinMode string

	DBDriver string
	DBDSN    string

	JWTSecret string

	RedisAddr     string
	RedisPassword string

	KafkaBroker string
	KafkaTopic  string

	CORSOrigins []string
	UploadDir   string

	Fees     pricing.FeeConfig
	Checkout pricing.CheckoutConfig
	Earnings pricing.EarningConfig

	// AcceptTimeout is how long a Pending order may wait for the restaurant
	// before the system cancels it.
	AcceptTimeout time.Duration
	SweepInterval time.Duration
}

// Load reads .env (when present) and the process environment.
func Load() Config {
	_ = godotenv.Load()

	fees := pricing.DefaultFeeConfig()
	earn := pricing.DefaultEarningConfig()

	return Config{
		Port:          getEnv("PORT", "8080"),
		GinMode:       getEnv("GIN_MODE", "debug"),
		DBDriver:      getEnv("DB_DRIVER", "sqlite"),
		DBDSN:         getEnv("DB_DSN", "delivery.db"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		KafkaBroker:   os.Getenv("KAFKA_BROKER"),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "order-events"),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:5500")),
		UploadDir:     getEnv("UPLOAD_DIR", "public/uploads"),
		Fees: pricing.FeeConfig{
			Base:  getFloat("DELIVERY_BASE_FEE", fees.Base),
			PerKm: getFloat("DELIVERY_PER_KM", fees.PerKm),
			Max:   getFloat("DELIVERY_MAX_FEE", fees.Max),
		},
		Checkout: pricing.CheckoutConfig{
			ServiceFee: getFloat("SERVICE_FEE", 0),
			TaxEnabled: getBool("TAX_ENABLED", false),
			TaxRate:    getFloat("TAX_RATE", 0),
		},
		Earnings: pricing.EarningConfig{
			BasePay: getFloat("RIDER_BASE_PAY", earn.BasePay),
			PerKm:   getFloat("RIDER_PER_KM", earn.PerKm),
		},
		AcceptTimeout: getDuration("ORDER_ACCEPT_TIMEOUT", 10*time.Minute),
		SweepInterval: getDuration("ORDER_SWEEP_INTERVAL", time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
