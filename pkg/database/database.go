package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/clinvault/clinvault/config"
	"github.com/clinvault/clinvault/internal/domain"
	"github.com/clinvault/clinvault/internal/domain/document"
	"github.com/clinvault/clinvault/internal/domain/profile"
	"github.com/clinvault/clinvault/internal/domain/report"
)

func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:      gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt: true,
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	case "postgres":
		dialector = postgres.New(postgres.Config{
			DSN:                  cfg.DSN(),
			PreferSimpleProtocol: false,
		})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

// schemaMigration records applied schema versions, so upgrades create
// missing collections without touching existing data.
type schemaMigration struct {
	Version   int       `gorm:"primaryKey"`
	Name      string    `gorm:"type:varchar(100);not null"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

func (schemaMigration) TableName() string {
	return "schema_migrations"
}

type migrationStep struct {
	version int
	name    string
	run     func(tx *gorm.DB) error
}

// Ordered, append-only. Never renumber or edit an applied step.
var migrationSteps = []migrationStep{
	{
		version: 1,
		name:    "create profiles",
		run: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&profile.Profile{})
		},
	},
	{
		version: 2,
		name:    "create documents and reports",
		run: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&document.ProcessedDocument{}, &report.ReportData{}); err != nil {
				return err
			}
			// Per-profile reads must stay proportional to that profile's
			// record count, never a full scan.
			return tx.Exec("CREATE INDEX IF NOT EXISTS idx_documents_profile_id ON documents (profile_id)").Error
		},
	},
	{
		version: 3,
		name:    "create audit logs",
		run: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&domain.AuditLog{})
		},
	},
}

// Migrate applies all pending schema versions in order. Safe to re-run.
func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	if err := db.AutoMigrate(&schemaMigration{}); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	row := db.Model(&schemaMigration{}).Select("COALESCE(MAX(version), 0)").Row()
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	applied := 0
	for _, step := range migrationSteps {
		if step.version <= current {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := step.run(tx); err != nil {
				return err
			}
			return tx.Create(&schemaMigration{Version: step.version, Name: step.name}).Error
		})
		if err != nil {
			return fmt.Errorf("applying migration %d (%s): %w", step.version, step.name, err)
		}
		applied++
	}

	log.Info("migrations completed",
		zap.Int("applied", applied),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
