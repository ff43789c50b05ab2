package httpapi

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, app *App) {
	r.Get("/healthz", app.healthHandler)

	r.Post("/share-token", app.issueShareTokenHandler)
	r.Post("/verify-share-token", app.verifyShareTokenHandler)
	r.Get("/share/{token}", app.shareViewHandler)

	r.Get("/tasks", app.listTasksHandler)
	r.Post("/tasks", app.createTaskHandler)
	r.Post("/tasks/{task_id}/toggle", app.toggleTaskHandler)
	r.Delete("/tasks/{task_id}", app.deleteTaskHandler)
	r.Get("/tasks/export", app.exportTasksHandler)
	r.Post("/tasks/import", app.importTasksHandler)

	r.Get("/stats", app.statsHandler)
	r.Get("/events", app.eventsHandler)
}
