package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"learning-companion/internal/backup"
	"learning-companion/internal/realtime"
	"learning-companion/internal/stats"
	"learning-companion/internal/syncer"
)

type createTaskRequest struct {
	Title    string `json:"title"`
	Category string `json:"category"`
}

type verifyShareTokenRequest struct {
	Token string `json:"token"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// accessToken pulls the bearer credential from the query string (the way the
// share-token endpoint is called) or the Authorization header.
func accessToken(r *http.Request) string {
	if tok := r.URL.Query().Get("access_token"); tok != "" {
		return tok
	}
	header := r.Header.Get("Authorization")
	if rest, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(rest)
	}
	return ""
}

// ownerSyncer authenticates the request and returns the owner's syncer.
// A nil syncer means the response has already been written.
func (a *App) ownerSyncer(w http.ResponseWriter, r *http.Request) (string, *syncer.Syncer) {
	ownerID, err := a.Auth.OwnerForToken(r.Context(), accessToken(r))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return "", nil
	}
	s, err := a.Manager.ForOwner(r.Context(), ownerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load tasks"})
		return "", nil
	}
	return ownerID, s
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"queued": a.Manager.QueueDepth(),
	})
}

func (a *App) issueShareTokenHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, err := a.Auth.OwnerForToken(r.Context(), accessToken(r))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	shareToken, err := a.Tokens.Issue(ownerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to issue token"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"shareUrl":  fmt.Sprintf("%s/share/%s", a.BaseURL, shareToken),
		"expiresIn": fmt.Sprintf("%d days", int(a.Tokens.TTL().Hours()/24)),
	})
}

func (a *App) verifyShareTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req verifyShareTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no token provided"})
		return
	}

	ownerID, err := a.Tokens.Verify(req.Token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "link invalid or expired"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"userId": ownerID})
}

// shareViewHandler serves the read-only progress view behind a share link.
func (a *App) shareViewHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, err := a.Tokens.Verify(chi.URLParam(r, "token"))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "link invalid or expired"})
		return
	}

	tasks, err := a.Remote.ListByOwner(r.Context(), ownerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load tasks"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"stats": stats.Summarize(tasks, time.Now()),
	})
}

func (a *App) listTasksHandler(w http.ResponseWriter, r *http.Request) {
	_, s := a.ownerSyncer(w, r)
	if s == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": s.Tasks()})
}

func (a *App) createTaskHandler(w http.ResponseWriter, r *http.Request) {
	_, s := a.ownerSyncer(w, r)
	if s == nil {
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	task, err := s.Add(r.Context(), req.Title, req.Category)
	if errors.Is(err, syncer.ErrValidation) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to add task"})
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (a *App) toggleTaskHandler(w http.ResponseWriter, r *http.Request) {
	_, s := a.ownerSyncer(w, r)
	if s == nil {
		return
	}
	if err := s.Toggle(r.Context(), chi.URLParam(r, "task_id")); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to toggle task"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": s.Tasks()})
}

func (a *App) deleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	_, s := a.ownerSyncer(w, r)
	if s == nil {
		return
	}
	if err := s.Remove(r.Context(), chi.URLParam(r, "task_id")); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete task"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) exportTasksHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, s := a.ownerSyncer(w, r)
	if s == nil {
		return
	}
	data, err := s.ExportSnapshot()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to export"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "learning-companion-"+ownerID+".json"))
	_, _ = w.Write(data)
}

func (a *App) importTasksHandler(w http.ResponseWriter, r *http.Request) {
	_, s := a.ownerSyncer(w, r)
	if s == nil {
		return
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}
	tasks, err := s.ImportSnapshot(r.Context(), raw)
	if errors.Is(err, backup.ErrFormat) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to import"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (a *App) statsHandler(w http.ResponseWriter, r *http.Request) {
	_, s := a.ownerSyncer(w, r)
	if s == nil {
		return
	}
	writeJSON(w, http.StatusOK, stats.Summarize(s.Tasks(), time.Now()))
}

// eventsHandler streams the owner's live changes as server-sent events until
// the client disconnects.
func (a *App) eventsHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, err := a.Auth.OwnerForToken(r.Context(), accessToken(r))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := make(chan realtime.Event, 64)
	unsubscribe := a.Hub.Subscribe(ownerID, func(ev realtime.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
