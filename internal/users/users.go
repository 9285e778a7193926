// Package users is the user directory module: registration, profiles,
// credentials, lifecycle, roles and search.
package users

import (
	"log/slog"

	"usermgmt/internal/users/handler"
	"usermgmt/internal/users/service"
)

// Service exposes the directory operations.
type Service = service.Service

// Handler wires HTTP endpoints to the directory service.
type Handler = handler.Handler

// NewService constructs the directory service with required dependencies.
func NewService(accounts service.AccountStore, hasher service.Hasher, notifier service.Notifier, opts ...service.Option) *Service {
	return service.New(accounts, hasher, notifier, opts...)
}

// NewHandler constructs an HTTP handler for the /users routes.
func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
