package app

import (
	"context"
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storebot/internal/bot"
	"github.com/vladislavdragonenkov/storebot/internal/catalog"
	"github.com/vladislavdragonenkov/storebot/internal/domain"
	"github.com/vladislavdragonenkov/storebot/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storebot/internal/metrics"
	"github.com/vladislavdragonenkov/storebot/internal/service/inventory"
	"github.com/vladislavdragonenkov/storebot/internal/service/outbox"
	"github.com/vladislavdragonenkov/storebot/internal/service/payment"
	"github.com/vladislavdragonenkov/storebot/internal/service/promo"
	"github.com/vladislavdragonenkov/storebot/internal/service/session"
	filestore "github.com/vladislavdragonenkov/storebot/internal/storage/file"
	"github.com/vladislavdragonenkov/storebot/internal/storage/memory"
	"github.com/vladislavdragonenkov/storebot/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/storebot/internal/storage/redis"

	goredis "github.com/redis/go-redis/v9"
)

// Dependencies содержит собранный граф зависимостей приложения.
// Бэкенды выбираются конфигурацией: Redis для сессий/склада, Postgres
// для журнала продаж, Kafka для событий — каждый опционален.
type Dependencies struct {
	Sessions  domain.SessionStore
	Queue     domain.CredentialQueue
	Ledger    domain.SalesLedger
	Audit     domain.AuditLog
	Outbox    domain.OutboxRepository
	Inventory *inventory.Service
	Promos    *promo.Service
	Catalog   *catalog.Catalog
	Gateway   domain.PaymentGateway

	Machine *bot.StepMachine
	Admin   *bot.AdminHandler
	Router  *bot.Router

	BotMetrics    *metrics.BotMetrics
	CleanupWorker *session.CleanupWorker
	OutboxWorker  *outbox.Worker

	redisClient   *goredis.Client
	pgStore       *postgres.Store
	kafkaProducer *kafka.Producer
	logger        *log.Entry
}

// NewDependencies строит граф зависимостей по конфигурации.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{
		BotMetrics: metrics.NewBotMetrics(),
		logger:     logger,
	}

	if err := deps.initStorage(ctx, cfg); err != nil {
		deps.Close()
		return nil, err
	}
	if err := deps.initServices(cfg); err != nil {
		deps.Close()
		return nil, err
	}
	deps.initKafka(cfg)
	deps.initBot(cfg)
	return deps, nil
}

// initStorage выбирает бэкенды хранения: Redis, если задан адрес,
// иначе файловое/in-memory хранилище под DataDir. Postgres, если задан
// DSN, замещает журнал продаж.
func (d *Dependencies) initStorage(ctx context.Context, cfg Config) error {
	if cfg.RedisAddr != "" {
		client, err := redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		d.redisClient = client
		d.Sessions = redisstore.NewSessionStore(client, cfg.SessionTTL, cfg.MaxCartItems)
		d.Queue = redisstore.NewCredentialQueue(client)
		d.Ledger = redisstore.NewSalesLedger(client)
		d.Audit = redisstore.NewAuditLog(client)
		d.logger.WithField("addr", cfg.RedisAddr).Info("redis storage initialized")
	} else {
		d.Sessions = memory.NewSessionStore(cfg.SessionTTL, cfg.MaxCartItems)

		queue, err := filestore.NewCredentialQueue(filepath.Join(cfg.DataDir, "stock"))
		if err != nil {
			return fmt.Errorf("init credential queue: %w", err)
		}
		d.Queue = queue

		ledger, err := filestore.NewSalesLedger(filepath.Join(cfg.DataDir, "sold"))
		if err != nil {
			return fmt.Errorf("init sales ledger: %w", err)
		}
		d.Ledger = ledger
		d.Audit = filestore.NewAuditLog(filepath.Join(cfg.DataDir, "audit.jsonl"))
		d.logger.WithField("data_dir", cfg.DataDir).Info("file storage initialized")
	}

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.MigrateUp(ctx); err != nil {
			_ = store.Close()
			return fmt.Errorf("apply migrations: %w", err)
		}
		d.pgStore = store
		d.Ledger = postgres.NewSalesLedger(store)
		d.logger.Info("postgres sales ledger initialized")
	}
	return nil
}

func (d *Dependencies) initServices(cfg Config) error {
	d.Outbox = memory.NewOutboxRepository()

	d.Inventory = inventory.NewService(
		d.Queue,
		d.Ledger,
		d.Audit,
		d.Outbox,
		cfg.LowStockThreshold,
		d.logger.WithField("component", "inventory"),
	)

	promoSvc, err := promo.NewService(filepath.Join(cfg.DataDir, "promo"), d.logger.WithField("component", "promo"))
	if err != nil {
		return fmt.Errorf("init promo service: %w", err)
	}
	d.Promos = promoSvc

	productCatalog, err := catalog.New(cfg.ProductsPath, d.Queue, d.logger.WithField("component", "catalog"))
	if err != nil {
		return fmt.Errorf("init catalog: %w", err)
	}
	d.Catalog = productCatalog

	// NOTE: mock-шлюз для разработки; в проде заменяется реальным
	// клиентом платёжного провайдера за тем же портом
	d.Gateway = payment.NewMockGateway()

	d.CleanupWorker = session.NewCleanupWorker(
		d.Sessions,
		session.WithInterval(cfg.CleanupInterval),
		session.WithBotMetrics(d.BotMetrics),
		session.WithLogger(d.logger.WithField("component", "session-cleanup-worker")),
	)
	return nil
}

// initKafka поднимает producer и outbox worker, если заданы брокеры.
// Ошибка подключения не фатальна: бот работает без событийного стрима.
func (d *Dependencies) initKafka(cfg Config) {
	if len(cfg.KafkaBrokers) == 0 {
		return
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		d.logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return
	}
	d.kafkaProducer = producer
	d.logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")

	d.OutboxWorker = outbox.NewWorker(
		d.Outbox,
		kafka.NewOutboxPublisher(producer, kafka.TopicStoreEvents),
		outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)),
		outbox.WithLogger(d.logger.WithField("component", "outbox-worker")),
	)
}

func (d *Dependencies) initBot(cfg Config) {
	botCfg := cfg.BotConfig()

	d.Machine = bot.NewStepMachine(
		d.Sessions, d.Catalog, d.Inventory, d.Promos, d.Gateway,
		botCfg, d.BotMetrics, d.logger.WithField("component", "step-machine"),
	)
	d.Admin = bot.NewAdminHandler(
		d.Sessions, d.Inventory, d.Promos, d.Catalog, d.Gateway,
		botCfg, d.BotMetrics, d.logger.WithField("component", "admin-handler"),
	)
	d.Router = bot.NewRouter(
		d.Machine, d.Admin, cfg.AdminIDs,
		d.BotMetrics, d.logger.WithField("component", "router"),
	)
}

// Close освобождает внешние соединения в обратном порядке инициализации.
func (d *Dependencies) Close() {
	if d.kafkaProducer != nil {
		if err := d.kafkaProducer.Close(); err != nil {
			d.logger.WithError(err).Warn("failed to close kafka producer")
		} else {
			d.logger.Info("kafka producer closed")
		}
	}
	if d.pgStore != nil {
		if err := d.pgStore.Close(); err != nil {
			d.logger.WithError(err).Warn("failed to close postgres store")
		}
	}
	if d.redisClient != nil {
		if err := d.redisClient.Close(); err != nil {
			d.logger.WithError(err).Warn("failed to close redis client")
		}
	}
}
