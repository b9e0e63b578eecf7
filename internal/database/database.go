// Package database opens the configured backend once per process and hands
// out the repository built on it.
package database

import (
	"context"
	"fmt"

	"designsense-go/internal/config"
	logging "designsense-go/internal/logging"
	"designsense-go/internal/repository"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Pool owns the database connection for the lifetime of the process.
type Pool struct {
	driver string
	client *mongo.Client
	gormDB *gorm.DB
	store  repository.Store
	log    *zap.Logger
}

// Open connects to the configured backend and prepares its schema.
func Open(ctx context.Context, conf config.DatabaseConfig, log *zap.Logger) (*Pool, error) {
	switch conf.Driver {
	case config.DriverMongo:
		return openMongo(ctx, conf.Mongo, log)
	case config.DriverPostgres:
		return openPostgres(ctx, conf.Postgres, log)
	default:
		return nil, fmt.Errorf("unknown database driver %q", conf.Driver)
	}
}

func openMongo(ctx context.Context, conf config.MongoConfig, log *zap.Logger) (*Pool, error) {
	if conf.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, conf.ConnectTimeout)
		defer cancel()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	log.Info("Database connection established successfully.", zap.String("driver", config.DriverMongo), zap.String("db", conf.DBName))

	store := repository.NewMongoStore(client.Database(conf.DBName))
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Info("Indexes ensured successfully.")

	return &Pool{driver: config.DriverMongo, client: client, store: store, log: log}, nil
}

func openPostgres(ctx context.Context, conf config.PostgresConfig, log *zap.Logger) (*Pool, error) {
	db, err := gorm.Open(postgres.Open(conf.DSN()), &gorm.Config{
		Logger:         logging.NewGormZapLogger(log),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	log.Info("Database connection established successfully.", zap.String("driver", config.DriverPostgres), zap.String("db", conf.DBName))

	store := repository.NewPostgresStore(db.WithContext(ctx))
	if err := store.Migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run database migrations: %w", err)
	}
	log.Info("Database migrations completed successfully.")

	return &Pool{driver: config.DriverPostgres, gormDB: db, store: repository.NewPostgresStore(db), log: log}, nil
}

// Store returns the repository backed by this pool.
func (p *Pool) Store() repository.Store {
	return p.store
}

// Driver names the backend in use.
func (p *Pool) Driver() string {
	return p.driver
}

// Ping checks the connection is still usable.
func (p *Pool) Ping(ctx context.Context) error {
	if p.client != nil {
		return p.client.Ping(ctx, readpref.Primary())
	}
	sqlDB, err := p.gormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection.
func (p *Pool) Close(ctx context.Context) error {
	p.log.Info("Closing database connection.", zap.String("driver", p.driver))
	if p.client != nil {
		return p.client.Disconnect(ctx)
	}
	sqlDB, err := p.gormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
