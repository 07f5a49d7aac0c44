// Package app wires repositories into services, handlers and the router.
package app

import (
	"fmt"
	"time"

	"github.com/jwalitptl/practice-api/internal/handler"
	appointmentHandler "github.com/jwalitptl/practice-api/internal/handler/appointment"
	assignmentHandler "github.com/jwalitptl/practice-api/internal/handler/assignment"
	availabilityHandler "github.com/jwalitptl/practice-api/internal/handler/availability"
	clientHandler "github.com/jwalitptl/practice-api/internal/handler/client"
	permissionHandler "github.com/jwalitptl/practice-api/internal/handler/permission"
	"github.com/jwalitptl/practice-api/internal/middleware"
	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
	"github.com/jwalitptl/practice-api/internal/router"
	"github.com/jwalitptl/practice-api/internal/service/appointment"
	"github.com/jwalitptl/practice-api/internal/service/assignment"
	"github.com/jwalitptl/practice-api/internal/service/audit"
	"github.com/jwalitptl/practice-api/internal/service/availability"
	"github.com/jwalitptl/practice-api/internal/service/event"
	"github.com/jwalitptl/practice-api/internal/service/permission"
	"github.com/jwalitptl/practice-api/internal/service/session"
	"github.com/jwalitptl/practice-api/pkg/auth"
	"github.com/jwalitptl/practice-api/pkg/metrics"
)

const (
	PermissionSourceStatic   = "static"
	PermissionSourceDatabase = "database"
)

type Options struct {
	// PermissionSource is "static" (built-in mapping) or "database".
	PermissionSource string
	Location         *time.Location
	Appointments     appointment.Options
	Validator        auth.Validator
}

// App holds the wired services.
type App struct {
	Audit        *audit.Service
	Events       *event.Service
	Permissions  *permission.Service
	Assignments  *assignment.Service
	Checker      *availability.Checker
	Availability *availability.Service
	Gate         *appointment.Gate
	Appointments *appointment.Service
	Sessions     *session.Service
	Auth         *middleware.AuthMiddleware
}

// New builds every service over repos. m may be nil.
func New(repos repository.Repositories, opts Options, m *metrics.Metrics) (*App, error) {
	auditor := audit.NewService(repos.Audit)
	events := event.NewService(repos.Outbox)

	var (
		source    permission.Source
		rolePerms repository.RolePermissionRepository
	)
	switch opts.PermissionSource {
	case "", PermissionSourceStatic:
		source = permission.StaticSource(model.DefaultRolePermissions)
	case PermissionSourceDatabase:
		source = permission.NewDatabaseSource(repos.RolePermissions)
		rolePerms = repos.RolePermissions
	default:
		return nil, fmt.Errorf("unknown permission source %q", opts.PermissionSource)
	}
	perms := permission.NewService(source, repos.Assignments, rolePerms, auditor, m)

	assignments := assignment.NewService(repos.Assignments, repos.Users, events, auditor)
	checker := availability.NewChecker(repos.Availability, repos.Exceptions, repos.Appointments, opts.Location, m)
	avail := availability.NewService(repos.Availability, repos.Exceptions, repos.Users, perms, checker, auditor)
	gate := appointment.NewGate(perms, assignments, m)
	appointments := appointment.NewService(repos.Appointments, repos.Clients, repos.Users, repos.Assignments,
		gate, perms, checker, events, auditor, opts.Appointments)
	sessions := session.NewService(repos.Clients, repos.SessionNotes, repos.Appointments, perms, gate, auditor)

	return &App{
		Audit:        auditor,
		Events:       events,
		Permissions:  perms,
		Assignments:  assignments,
		Checker:      checker,
		Availability: avail,
		Gate:         gate,
		Appointments: appointments,
		Sessions:     sessions,
		Auth:         middleware.NewAuthMiddleware(opts.Validator, perms),
	}, nil
}

// Router mounts the API. health may be nil.
func (a *App) Router(health handler.RouteRegistrar, m *metrics.Metrics, config router.RouterConfig) (*router.Router, error) {
	if err := middleware.RegisterValidators(); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	r := router.NewRouter(a.Auth, router.Handlers{
		Health:       health,
		Permission:   permissionHandler.NewHandler(a.Permissions, a.Auth),
		Assignment:   assignmentHandler.NewHandler(a.Assignments),
		Availability: availabilityHandler.NewHandler(a.Availability),
		Appointment:  appointmentHandler.NewHandler(a.Appointments),
		Client:       clientHandler.NewHandler(a.Sessions),
	}, m, config)
	r.Setup()
	return r, nil
}
