package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/jwalitptl/practice-api/internal/config"
	"github.com/jwalitptl/practice-api/internal/repository"
	"github.com/jwalitptl/practice-api/pkg/metrics"
)

func NewDB(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// NewRepositories builds every repository over db. m may be nil.
func NewRepositories(db *sqlx.DB, m *metrics.Metrics) repository.Repositories {
	base := NewBaseRepository(db, m)
	return repository.Repositories{
		Users:           NewUserRepository(base),
		RolePermissions: NewRolePermissionRepository(base),
		Assignments:     NewAssignmentRepository(base),
		Availability:    NewAvailabilityRepository(base),
		Exceptions:      NewExceptionRepository(base),
		Appointments:    NewAppointmentRepository(base),
		Clients:         NewClientRepository(base),
		SessionNotes:    NewSessionNoteRepository(base),
		Audit:           NewAuditRepository(base),
		Outbox:          NewOutboxRepository(base),
	}
}
