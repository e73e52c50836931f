// Package api exposes the HTTP surface of the application.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/voxhall/armory/internal/api/middleware"
	"github.com/voxhall/armory/internal/backup"
	"github.com/voxhall/armory/internal/cache"
	"github.com/voxhall/armory/internal/event"
	"github.com/voxhall/armory/internal/maintenance"
	"github.com/voxhall/armory/internal/registry"
	"github.com/voxhall/armory/internal/scan"
	"github.com/voxhall/armory/internal/settings"
	"github.com/voxhall/armory/internal/webhook"
)

// RouterDeps bundles all dependencies needed by the HTTP router.
type RouterDeps struct {
	Registry          *registry.Service
	Coordinator       *scan.Coordinator
	Cache             *cache.Store
	History           *scan.History
	Settings          *settings.Store
	WebhookService    *webhook.Service
	WebhookDispatcher *webhook.Dispatcher
	EventBus          *event.Bus
	Backup            *backup.Service
	Maintenance       *maintenance.Service
	Logger            *slog.Logger
	BasePath          string
}

// Router sets up all HTTP routes for the application.
type Router struct {
	registry          *registry.Service
	coordinator       *scan.Coordinator
	cache             *cache.Store
	history           *scan.History
	settings          *settings.Store
	webhookService    *webhook.Service
	webhookDispatcher *webhook.Dispatcher
	eventBus          *event.Bus
	backup            *backup.Service
	maintenance       *maintenance.Service
	logger            *slog.Logger
	basePath          string
	broker            *sseBroker
}

// NewRouter creates a new Router with all routes configured. The SSE broker
// subscribes to the event bus once, for the lifetime of the router.
func NewRouter(deps RouterDeps) *Router {
	r := &Router{
		registry:          deps.Registry,
		coordinator:       deps.Coordinator,
		cache:             deps.Cache,
		history:           deps.History,
		settings:          deps.Settings,
		webhookService:    deps.WebhookService,
		webhookDispatcher: deps.WebhookDispatcher,
		eventBus:          deps.EventBus,
		backup:            deps.Backup,
		maintenance:       deps.Maintenance,
		logger:            deps.Logger,
		basePath:          deps.BasePath,
		broker:            newSSEBroker(deps.Logger),
	}
	if r.eventBus != nil {
		r.eventBus.SubscribeAll(r.broker.handleEvent)
	}
	return r
}

// Handler returns the fully configured HTTP handler with middleware applied.
// ctx bounds the lifetime of the rate limiter's cleanup goroutine.
func (r *Router) Handler(ctx context.Context) http.Handler {
	limiter := middleware.NewMutationRateLimiter(ctx)
	limit := func(fn http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, req *http.Request) {
			limiter.Middleware(fn).ServeHTTP(w, req)
		}
	}

	mux := http.NewServeMux()
	bp := r.basePath

	mux.HandleFunc("GET "+bp+"/api/v1/health", r.handleHealth)
	mux.HandleFunc("GET "+bp+"/api/v1/events", r.handleEvents)

	// Directory registry routes
	mux.HandleFunc("GET "+bp+"/api/v1/directories", r.handleListDirectories)
	mux.HandleFunc("POST "+bp+"/api/v1/directories", limit(r.handleAddDirectory))
	mux.HandleFunc("POST "+bp+"/api/v1/directories/validate", limit(r.handleValidatePath))
	mux.HandleFunc("GET "+bp+"/api/v1/directories/validating", r.handleValidating)
	mux.HandleFunc("GET "+bp+"/api/v1/directories/selected", r.handleGetSelected)
	mux.HandleFunc("PUT "+bp+"/api/v1/directories/selected", limit(r.handleSetSelected))
	mux.HandleFunc("GET "+bp+"/api/v1/directories/{id}", r.handleGetDirectory)
	mux.HandleFunc("DELETE "+bp+"/api/v1/directories/{id}", limit(r.handleRemoveDirectory))
	mux.HandleFunc("POST "+bp+"/api/v1/directories/{id}/revalidate", limit(r.handleRevalidateDirectory))
	mux.HandleFunc("POST "+bp+"/api/v1/directories/{id}/toggle", limit(r.handleToggleDirectory))

	// Scan routes
	mux.HandleFunc("POST "+bp+"/api/v1/scan/run", limit(r.handleScanRun))
	mux.HandleFunc("POST "+bp+"/api/v1/scan/run/{id}", limit(r.handleScanRunOne))
	mux.HandleFunc("GET "+bp+"/api/v1/scan/status", r.handleScanStatus)
	mux.HandleFunc("POST "+bp+"/api/v1/scan/cancel", r.handleScanCancel)
	mux.HandleFunc("GET "+bp+"/api/v1/scan/history", r.handleScanHistory)

	// Cached content routes
	mux.HandleFunc("GET "+bp+"/api/v1/weapons", r.handleListWeapons)
	mux.HandleFunc("GET "+bp+"/api/v1/items", r.handleListItems)
	mux.HandleFunc("GET "+bp+"/api/v1/stats", r.handleStats)

	// Settings routes
	mux.HandleFunc("GET "+bp+"/api/v1/settings", r.handleListSettings)
	mux.HandleFunc("GET "+bp+"/api/v1/settings/{key}", r.handleGetSetting)
	mux.HandleFunc("PUT "+bp+"/api/v1/settings/{key}", limit(r.handleSetSetting))
	mux.HandleFunc("DELETE "+bp+"/api/v1/settings/{key}", limit(r.handleDeleteSetting))

	// Webhook routes
	mux.HandleFunc("GET "+bp+"/api/v1/webhooks", r.handleListWebhooks)
	mux.HandleFunc("POST "+bp+"/api/v1/webhooks", limit(r.handleCreateWebhook))
	mux.HandleFunc("GET "+bp+"/api/v1/webhooks/{id}", r.handleGetWebhook)
	mux.HandleFunc("PUT "+bp+"/api/v1/webhooks/{id}", limit(r.handleUpdateWebhook))
	mux.HandleFunc("DELETE "+bp+"/api/v1/webhooks/{id}", limit(r.handleDeleteWebhook))
	mux.HandleFunc("POST "+bp+"/api/v1/webhooks/{id}/test", limit(r.handleTestWebhook))

	// Database admin routes
	if r.backup != nil {
		mux.HandleFunc("GET "+bp+"/api/v1/backups", r.handleListBackups)
		mux.HandleFunc("POST "+bp+"/api/v1/backups", limit(r.handleCreateBackup))
		mux.HandleFunc("DELETE "+bp+"/api/v1/backups/{filename}", limit(r.handleDeleteBackup))
	}
	if r.maintenance != nil {
		mux.HandleFunc("GET "+bp+"/api/v1/maintenance/status", r.handleMaintenanceStatus)
		mux.HandleFunc("POST "+bp+"/api/v1/maintenance/optimize", limit(r.handleMaintenanceOptimize))
		mux.HandleFunc("POST "+bp+"/api/v1/maintenance/vacuum", limit(r.handleMaintenanceVacuum))
	}

	var handler http.Handler = mux
	handler = middleware.SecurityHeaders(handler)
	handler = middleware.Logging(r.logger)(handler)
	return handler
}
