package api

import (
	"errors"
	"net/http"

	"github.com/askdata/askdata/internal/dataset"
	"github.com/askdata/askdata/internal/nl2sql"
	"github.com/askdata/askdata/internal/session"
	"github.com/askdata/askdata/internal/storage"
	"github.com/askdata/askdata/internal/store"
)

func handleCreateSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session manager is not configured", false, nil)
		return
	}
	s, err := deps.Sessions.Create(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": s.ID(),
		"dialect":    s.Dialect(),
	})
}

func handleDeleteSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session manager is not configured", false, nil)
		return
	}
	if err := deps.Sessions.Delete(r.PathValue("id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// lookupSession writes the error response itself and returns nil when the
// session cannot be used.
func lookupSession(deps Dependencies, w http.ResponseWriter, r *http.Request, role string) *session.Session {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session manager is not configured", false, nil)
		return nil
	}
	if err := requireRole(r, role); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return nil
	}
	s, err := deps.Sessions.Get(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return nil
	}
	return s
}

// writeDomainError maps core errors to the JSON error envelope.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		unsupported *dataset.UnsupportedFormatError
		decodeErr   *dataset.DecodeError
		serviceErr  *nl2sql.ServiceError
		tooLarge    *http.MaxBytesError
	)
	ctx := r.Context()
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(ctx, w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found", false, map[string]any{"session_id": r.PathValue("id")})
	case errors.Is(err, session.ErrTooManySessions):
		writeError(ctx, w, http.StatusServiceUnavailable, "SESSION_LIMIT", err.Error(), true, nil)
	case errors.As(err, &unsupported):
		writeError(ctx, w, http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT", err.Error(), false, map[string]any{"kind": unsupported.Kind})
	case errors.As(err, &decodeErr):
		writeError(ctx, w, http.StatusBadRequest, "INVALID_DATASET", err.Error(), false, nil)
	case errors.As(err, &tooLarge), errors.Is(err, storage.ErrObjectTooLarge):
		writeError(ctx, w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "dataset exceeds the upload size limit", false, nil)
	case errors.Is(err, store.ErrNoDataset):
		writeError(ctx, w, http.StatusConflict, "NO_DATASET", "upload a dataset before querying", false, nil)
	case errors.Is(err, nl2sql.ErrMissingCredential):
		writeError(ctx, w, http.StatusBadRequest, "CREDENTIAL_REQUIRED", "a text completion API key is required in X-LLM-API-Key or Authorization", false, nil)
	case errors.As(err, &serviceErr):
		extra := map[string]any{"details": serviceErr.Err.Error()}
		if serviceErr.StatusCode > 0 {
			extra["status_code"] = serviceErr.StatusCode
		}
		writeError(ctx, w, http.StatusBadGateway, "SYNTHESIS_FAILED", "failed to synthesize a query", true, extra)
	case errors.Is(err, storage.ErrObjectNotFound):
		writeError(ctx, w, http.StatusNotFound, "OBJECT_NOT_FOUND", "object not found", false, nil)
	default:
		writeError(ctx, w, http.StatusInternalServerError, "INTERNAL_ERROR", "request failed", true, map[string]any{"details": err.Error()})
	}
}
