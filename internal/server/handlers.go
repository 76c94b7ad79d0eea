package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"mcpdock/internal/registry"
	"mcpdock/internal/security"

	"github.com/go-chi/chi/v5"
)

const (
	MaxPayloadBytes    = 1_000_000 // 1 MB
	DefaultEventsLimit = 20
	MaxEventsLimit     = 100
)

// recordView is the API rendering of a server record. Env values pass
// through redaction so secrets never leave the process.
type recordView struct {
	Name            string            `json:"name"`
	SourceRef       string            `json:"source_ref"`
	VersionSpec     string            `json:"version_spec"`
	Env             map[string]string `json:"env,omitempty"`
	Status          registry.Status   `json:"status"`
	ResolvedCommit  string            `json:"resolved_commit,omitempty"`
	ResolvedVersion string            `json:"resolved_version,omitempty"`
	InstalledAt     *time.Time        `json:"installed_at,omitempty"`
	LastUpdated     *time.Time        `json:"last_updated,omitempty"`
}

func viewOf(rec *registry.Record) recordView {
	return recordView{
		Name:            rec.Name,
		SourceRef:       rec.SourceRef,
		VersionSpec:     rec.VersionSpec,
		Env:             security.RedactEnv(rec.Env),
		Status:          rec.Status,
		ResolvedCommit:  rec.ResolvedCommit,
		ResolvedVersion: rec.ResolvedVersion,
		InstalledAt:     rec.InstalledAt,
		LastUpdated:     rec.LastUpdated,
	}
}

type upsertRequest struct {
	Name        string            `json:"name"`
	SourceRef   string            `json:"source_ref"`
	VersionSpec string            `json:"version_spec"`
	Env         map[string]string `json:"env"`
}

// HandleLiveness answers process liveness probes.
func (s *Server) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"server_count": s.Records.Count(),
	})
}

// HandleListServers returns every record, env redacted.
func (s *Server) HandleListServers(w http.ResponseWriter, r *http.Request) {
	records := s.Records.All()
	views := make([]recordView, 0, len(records))
	for _, rec := range records {
		views = append(views, viewOf(rec))
	}
	s.respondJSON(w, http.StatusOK, views)
}

// HandleUpsertServer creates or updates a record. Lifecycle fields of an
// existing record survive re-registration; only the caller-owned fields
// change.
func (s *Server) HandleUpsertServer(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, MaxPayloadBytes)).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON payload"})
		return
	}

	record := &registry.Record{
		Name:        req.Name,
		SourceRef:   req.SourceRef,
		VersionSpec: req.VersionSpec,
		Env:         req.Env,
	}
	if existing, ok := s.Records.Get(req.Name); ok {
		record.Status = existing.Status
		record.ResolvedCommit = existing.ResolvedCommit
		record.ResolvedVersion = existing.ResolvedVersion
		record.InstalledAt = existing.InstalledAt
		record.LastUpdated = existing.LastUpdated
	}

	if err := s.Records.Upsert(r.Context(), record); err != nil {
		var verr *security.ValidationError
		if errors.As(err, &verr) {
			s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error()})
			return
		}
		s.Logger.Error("Failed to store record", "server", req.Name, "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to store record"})
		return
	}

	stored, _ := s.Records.Get(req.Name)
	s.respondJSON(w, http.StatusCreated, viewOf(stored))
}

// HandleGetServer returns one record.
func (s *Server) HandleGetServer(w http.ResponseWriter, r *http.Request) {
	name, ok := s.serverName(w, r)
	if !ok {
		return
	}

	rec, found := s.Records.Get(name)
	if !found {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown server"})
		return
	}
	s.respondJSON(w, http.StatusOK, viewOf(rec))
}

// HandleDeleteServer removes a record. Installed servers must be
// undeployed first so the record never disagrees with the host config.
func (s *Server) HandleDeleteServer(w http.ResponseWriter, r *http.Request) {
	name, ok := s.serverName(w, r)
	if !ok {
		return
	}

	rec, found := s.Records.Get(name)
	if !found {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown server"})
		return
	}
	if rec.Status == registry.StatusInstalled {
		s.respondJSON(w, http.StatusConflict, map[string]string{"error": "Server is installed; undeploy it first"})
		return
	}

	deleted, err := s.Records.Delete(r.Context(), name)
	if err != nil {
		s.Logger.Error("Failed to delete record", "server", name, "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete record"})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"deleted": deleted})
}

// HandleDeploy starts an asynchronous deploy. A server already being
// deployed answers 429 instead of queueing.
func (s *Server) HandleDeploy(w http.ResponseWriter, r *http.Request) {
	name, ok := s.serverName(w, r)
	if !ok {
		return
	}

	if _, found := s.Records.Get(name); !found {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown server"})
		return
	}

	if !s.inflight.TryLock(name) {
		s.Logger.Warn("Deployment already in progress, rejecting", "server", name)
		s.respondJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Deployment already in progress"})
		return
	}

	// Acknowledge before the slow work; resolution may hit the network
	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"message": "Deployment accepted",
		"server":  name,
	})

	s.deployWg.Add(1)
	go func() {
		defer s.deployWg.Done()
		defer s.inflight.Unlock(name)
		s.executeDeploy(context.Background(), name)
	}()
}

// executeDeploy runs a deploy to completion and logs the outcome. The HTTP
// response has already been sent.
func (s *Server) executeDeploy(ctx context.Context, name string) {
	result, err := s.Manager.Deploy(ctx, name)
	if err != nil {
		s.Logger.Error("deployment error", "server", name, "error", err)
		return
	}
	if result.Success {
		s.Logger.Info("deployment completed", "server", name, "status", "success")
	} else {
		s.Logger.Error("deployment failed", "server", name, "error", result.ErrorMessage)
	}
}

// HandleUndeploy removes a server from the host config synchronously; the
// operation is local and bounded.
func (s *Server) HandleUndeploy(w http.ResponseWriter, r *http.Request) {
	name, ok := s.serverName(w, r)
	if !ok {
		return
	}

	removed, err := s.Manager.Undeploy(r.Context(), name)
	if err != nil {
		s.Logger.Error("Undeploy failed", "server", name, "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("Undeploy failed: %v", err)})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"server":  name,
		"removed": removed,
	})
}

// HandleHealthOne reports inferred health for one server.
func (s *Server) HandleHealthOne(w http.ResponseWriter, r *http.Request) {
	name, ok := s.serverName(w, r)
	if !ok {
		return
	}

	result, err := s.Monitor.CheckHealth(name)
	if err != nil {
		s.Logger.Error("Health check failed", "server", name, "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Health check failed"})
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// HandleHealthAll sweeps every known record.
func (s *Server) HandleHealthAll(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"server_count": s.Records.Count(),
		"results":      s.Monitor.CheckAll(),
	})
}

// HandleEvents returns recent deployment events for a server.
func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	name, ok := s.serverName(w, r)
	if !ok {
		return
	}
	if s.Events == nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Event log not available"})
		return
	}
	if _, found := s.Records.Get(name); !found {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown server"})
		return
	}

	limit := DefaultEventsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid limit"})
			return
		}
		if parsed > MaxEventsLimit {
			parsed = MaxEventsLimit
		}
		limit = parsed
	}

	events, err := s.Events.ListEvents(r.Context(), name, limit)
	if err != nil {
		s.Logger.Error("Failed to list events", "server", name, "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch events"})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"server": name,
		"events": events,
	})
}

// HandleWebhook accepts push notifications and redeploys an installed
// server. Signature verification happens before any payload parsing.
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	name, ok := s.serverName(w, r)
	if !ok {
		return
	}

	rec, found := s.Records.Get(name)
	if !found {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown server"})
		return
	}

	if r.ContentLength > MaxPayloadBytes {
		s.respondJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Payload too large"})
		return
	}
	if r.Header.Get("Content-Type") != "application/json" {
		s.respondJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": "Invalid content type"})
		return
	}
	if r.Header.Get("X-GitHub-Event") != "push" {
		s.respondJSON(w, http.StatusOK, map[string]string{"message": "Ignoring non-push event"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxPayloadBytes))
	if err != nil {
		s.Logger.Error("Failed to read request body", "error", err, "server", name)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read payload"})
		return
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	if !VerifySignature(body, signature, s.WebhookSecret) {
		s.respondJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid signature"})
		return
	}

	// Only servers that are already live get push-redeployed
	if rec.Status != registry.StatusInstalled {
		s.respondJSON(w, http.StatusConflict, map[string]string{"error": "Server is not installed"})
		return
	}

	if !s.inflight.TryLock(name) {
		s.Logger.Warn("Deployment already in progress, rejecting webhook", "server", name)
		s.respondJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Deployment already in progress"})
		return
	}

	// Acknowledge receipt before deploying; webhook senders time out fast
	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"message": "Redeploy accepted",
		"server":  name,
	})

	s.deployWg.Add(1)
	go func() {
		defer s.deployWg.Done()
		defer s.inflight.Unlock(name)
		s.executeDeploy(context.Background(), name)
	}()
}

// serverName extracts and validates the path parameter, answering 400
// itself when the name is malformed.
func (s *Server) serverName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "serverName")
	if err := security.ValidateServerName(name); err != nil {
		s.Logger.Warn("Invalid server name in request", "server", name, "error", err)
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Invalid server name: %v", err)})
		return "", false
	}
	return name, true
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.Logger.Error("Failed to encode JSON response", "error", err)
	}
}
