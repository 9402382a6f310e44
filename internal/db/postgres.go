package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/soundloom/companion-bot/internal/pkg/envutil"
	"github.com/soundloom/companion-bot/internal/platform/logger"
	"github.com/soundloom/companion-bot/internal/types"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	host := envutil.String("POSTGRES_HOST", "localhost")
	port := envutil.String("POSTGRES_PORT", "5432")
	user := envutil.String("POSTGRES_USER", "postgres")
	password := envutil.String("POSTGRES_PASSWORD", "")
	name := envutil.String("POSTGRES_NAME", "companionbot")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)

	serviceLog.Info("Connecting to Postgres...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.MenuState{},
		&types.TrackedMessage{},
		&types.DeepLinkEvent{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}
	return nil
}
