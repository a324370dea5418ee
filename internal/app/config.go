package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storebot/internal/bot"
	"github.com/vladislavdragonenkov/storebot/internal/domain"
)

// Config описывает настройки запуска бота. Все значения читаются из
// переменных окружения; .env подхватывается в main через godotenv.
type Config struct {
	MetricsAddr string
	DataDir     string

	AdminIDs []string

	SessionTTL      time.Duration
	CleanupInterval time.Duration
	MaxCartItems    int

	USDToIDRRate      int64
	EnabledPayments   []domain.PaymentMethod
	BankAccounts      []bot.BankAccount
	GatewayTimeout    time.Duration
	LowStockThreshold int

	ProductsPath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PostgresDSN string

	KafkaBrokers []string
}

// DefaultConfig возвращает конфигурацию для локального запуска:
// файловое хранилище, без Redis, Postgres и Kafka.
func DefaultConfig() Config {
	return Config{
		MetricsAddr:     ":9090",
		DataDir:         "./data",
		SessionTTL:      30 * time.Minute,
		CleanupInterval: 10 * time.Minute,
		MaxCartItems:    50,
		USDToIDRRate:    15800,
		EnabledPayments: []domain.PaymentMethod{
			domain.PaymentQRIS,
			domain.PaymentDANA,
			domain.PaymentGopay,
			domain.PaymentBCA,
		},
		BankAccounts: []bot.BankAccount{
			{Bank: "BCA", AccountNumber: "0000000000", AccountName: "Toko Digital"},
		},
		GatewayTimeout:    10 * time.Second,
		LowStockThreshold: 3,
	}
}

// LoadConfig собирает конфигурацию из окружения поверх дефолтов.
func LoadConfig() Config {
	cfg := DefaultConfig()

	cfg.MetricsAddr = getEnvOrDefault("STOREBOT_METRICS_ADDR", cfg.MetricsAddr)
	cfg.DataDir = getEnvOrDefault("STOREBOT_DATA_DIR", cfg.DataDir)
	cfg.AdminIDs = splitList(os.Getenv("STOREBOT_ADMIN_IDS"))

	cfg.SessionTTL = getEnvDuration("STOREBOT_SESSION_TTL", cfg.SessionTTL)
	cfg.CleanupInterval = getEnvDuration("STOREBOT_CLEANUP_INTERVAL", cfg.CleanupInterval)
	cfg.MaxCartItems = getEnvInt("STOREBOT_MAX_CART_ITEMS", cfg.MaxCartItems)

	cfg.USDToIDRRate = int64(getEnvInt("STOREBOT_USD_TO_IDR", int(cfg.USDToIDRRate)))
	if methods := splitList(os.Getenv("STOREBOT_PAYMENT_METHODS")); len(methods) > 0 {
		cfg.EnabledPayments = cfg.EnabledPayments[:0]
		for _, method := range methods {
			cfg.EnabledPayments = append(cfg.EnabledPayments, domain.PaymentMethod(strings.ToUpper(method)))
		}
	}
	if accounts := parseBankAccounts(os.Getenv("STOREBOT_BANK_ACCOUNTS")); len(accounts) > 0 {
		cfg.BankAccounts = accounts
	}
	cfg.GatewayTimeout = getEnvDuration("STOREBOT_GATEWAY_TIMEOUT", cfg.GatewayTimeout)
	cfg.LowStockThreshold = getEnvInt("STOREBOT_LOW_STOCK_THRESHOLD", cfg.LowStockThreshold)

	cfg.ProductsPath = getEnvOrDefault("STOREBOT_PRODUCTS_PATH", cfg.ProductsPath)

	cfg.RedisAddr = getEnvOrDefault("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvInt("REDIS_DB", cfg.RedisDB)

	cfg.PostgresDSN = getEnvOrDefault("STOREBOT_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))

	return cfg
}

// BotConfig переводит настройки приложения в конфигурацию диалога.
func (c Config) BotConfig() bot.Config {
	return bot.Config{
		MaxCartItems:   c.MaxCartItems,
		USDToIDRRate:   c.USDToIDRRate,
		EnabledMethods: c.EnabledPayments,
		BankAccounts:   c.BankAccounts,
		GatewayTimeout: c.GatewayTimeout,
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	chunks := strings.Split(raw, ",")
	values := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if v := strings.TrimSpace(chunk); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// parseBankAccounts разбирает формат "BANK:номер:имя;BANK:номер:имя".
func parseBankAccounts(raw string) []bot.BankAccount {
	var accounts []bot.BankAccount
	for _, chunk := range strings.Split(raw, ";") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		parts := strings.SplitN(chunk, ":", 3)
		if len(parts) != 3 {
			continue
		}
		accounts = append(accounts, bot.BankAccount{
			Bank:          strings.ToUpper(strings.TrimSpace(parts[0])),
			AccountNumber: strings.TrimSpace(parts[1]),
			AccountName:   strings.TrimSpace(parts[2]),
		})
	}
	return accounts
}
