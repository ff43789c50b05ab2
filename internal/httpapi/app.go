package httpapi

import (
	"learning-companion/internal/auth"
	"learning-companion/internal/realtime"
	"learning-companion/internal/service"
	"learning-companion/internal/syncer"
	"learning-companion/internal/token"
)

// App bundles the dependencies the HTTP handlers need.
type App struct {
	Manager *service.Manager
	Tokens  *token.Service
	Auth    auth.Provider
	Hub     *realtime.Hub
	Remote  syncer.Remote // read-only access for the share view
	BaseURL string
}
