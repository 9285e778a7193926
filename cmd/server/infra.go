package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"

	"usermgmt/internal/platform/config"
	platformmongo "usermgmt/internal/platform/mongo"
	"usermgmt/internal/platform/postgres"
	platformredis "usermgmt/internal/platform/redis"
	"usermgmt/internal/users/adapters/notifier"
	"usermgmt/internal/users/service"
	"usermgmt/internal/users/store/account"
	"usermgmt/internal/users/store/reservation"
	"usermgmt/pkg/platform/audit"
	auditmemory "usermgmt/pkg/platform/audit/store/memory"
	auditpostgres "usermgmt/pkg/platform/audit/store/postgres"
	"usermgmt/pkg/platform/circuit"
)

const (
	welcomeTopicPartitions  = 3
	welcomeTopicReplication = 1
)

// infrastructure holds the backing services selected by configuration and
// the directory collaborators built on top of them.
type infrastructure struct {
	accounts   service.AccountStore
	reserver   service.Reserver
	notifier   service.Notifier
	auditStore audit.Store

	db          *sql.DB
	mongoClient *mongo.Client
	redis       *platformredis.Client
	kafka       *notifier.KafkaNotifier
}

func openInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *infrastructure, err error) {
	infra := &infrastructure{}
	defer func() {
		if err != nil {
			infra.Close()
		}
	}()

	if err = infra.openAccounts(ctx, cfg); err != nil {
		return nil, err
	}

	if infra.redis, err = platformredis.New(ctx, cfg.Redis); err != nil {
		return nil, err
	}
	if infra.redis != nil {
		infra.reserver = reservation.NewRedis(infra.redis.Client, reservation.WithTTL(cfg.Redis.ReservationTTL))
	}

	if err = infra.openNotifier(ctx, cfg.Kafka, log); err != nil {
		return nil, err
	}

	if infra.db != nil {
		infra.auditStore = auditpostgres.New(infra.db)
	} else {
		infra.auditStore = auditmemory.NewInMemoryStore()
	}
	return infra, nil
}

func (i *infrastructure) openAccounts(ctx context.Context, cfg config.Config) error {
	switch cfg.Server.Store {
	case "", "memory":
		i.accounts = account.NewInMemoryStore()
	case "postgres":
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		if db == nil {
			return errors.New("store postgres requires USERMGMT_POSTGRES_DSN")
		}
		i.db = db
		i.accounts = account.NewPostgres(db)
	case "mongo":
		client, db, err := platformmongo.Connect(ctx, cfg.Mongo)
		if err != nil {
			return err
		}
		if client == nil {
			return errors.New("store mongo requires USERMGMT_MONGO_URI")
		}
		i.mongoClient = client
		store := account.NewMongo(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure mongo indexes: %w", err)
		}
		i.accounts = store
	default:
		return fmt.Errorf("unknown store %q", cfg.Server.Store)
	}
	return nil
}

// openNotifier publishes to Kafka when brokers are configured, falling back
// to the log while the breaker is open. Without brokers it only logs.
func (i *infrastructure) openNotifier(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger) error {
	logNotifier := notifier.NewLog(log)
	if len(cfg.Brokers) == 0 {
		i.notifier = logNotifier
		return nil
	}

	kafka, err := notifier.NewKafka(cfg.Brokers, cfg.WelcomeTopic)
	if err != nil {
		return err
	}
	i.kafka = kafka
	if cfg.CreateTopic {
		if err := kafka.EnsureTopic(ctx, welcomeTopicPartitions, welcomeTopicReplication); err != nil {
			return fmt.Errorf("ensure welcome topic: %w", err)
		}
	}
	breaker := circuit.New("welcome-notifier", circuit.WithFailureThreshold(cfg.FailureThreshold))
	i.notifier = notifier.NewFallback(kafka, logNotifier, breaker, log)
	return nil
}

// Health pings every configured backing service.
func (i *infrastructure) Health(ctx context.Context) error {
	var errs []error
	if i.db != nil {
		errs = append(errs, i.db.PingContext(ctx))
	}
	if i.mongoClient != nil {
		errs = append(errs, i.mongoClient.Ping(ctx, nil))
	}
	if i.redis != nil {
		errs = append(errs, i.redis.Health(ctx))
	}
	return errors.Join(errs...)
}

func (i *infrastructure) Close() {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.mongoClient != nil {
		_ = i.mongoClient.Disconnect(context.Background())
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}
