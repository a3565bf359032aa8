package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/askdata/askdata/internal/auth"
	"github.com/askdata/askdata/internal/export"
	"github.com/askdata/askdata/internal/query"
	"github.com/askdata/askdata/internal/storage"
)

type askRequest struct {
	Question string `json:"question"`
}

type queryRequest struct {
	SQL string `json:"sql"`
	// Export writes the result to the object store instead of returning it.
	Export bool `json:"export,omitempty"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	s := lookupSession(deps, w, r, auth.RoleQueryReader)
	if s == nil {
		return
	}

	var req askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	answer, err := s.Ask(r.Context(), req.Question, auth.LLMCredential(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	s := lookupSession(deps, w, r, auth.RoleQueryReader)
	if s == nil {
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_FORMAT", err.Error(), false, nil)
		return
	}

	var req queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	if req.Export {
		if deps.ObjectStore == nil {
			writeError(r.Context(), w, http.StatusNotImplemented, "EXPORT_NOT_CONFIGURED", "object store is not configured", false, nil)
			return
		}
		if format == export.FormatJSON {
			format = export.FormatParquet
		}
	}

	result := s.Run(r.Context(), req.SQL)
	if result.Failed() || format == export.FormatJSON {
		writeJSON(w, http.StatusOK, queryResponse(result))
		return
	}

	var buf bytes.Buffer
	switch format {
	case export.FormatCSV:
		err = export.WriteCSV(&buf, result.Columns, result.Rows)
	case export.FormatParquet:
		var data []byte
		data, err = export.EncodeParquet(result.Columns, result.Rows)
		buf.Write(data)
	}
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "EXPORT_FAILED", "failed to encode result", false, map[string]any{"details": err.Error()})
		return
	}

	if req.Export {
		key, err := storage.BuildExportPath(s.ID(), string(format), deps.Now())
		if err != nil {
			writeError(r.Context(), w, http.StatusInternalServerError, "EXPORT_FAILED", err.Error(), false, nil)
			return
		}
		info, err := deps.ObjectStore.Put(r.Context(), key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), storage.PutOptions{
			ContentType: format.ContentType(),
			Metadata: map[string]string{
				"session-id": s.ID(),
				"row-count":  strconv.Itoa(len(result.Rows)),
			},
		})
		if err != nil {
			writeError(r.Context(), w, http.StatusBadGateway, "OBJECT_STORE_ERROR", "failed to write export", true, map[string]any{"details": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"object_key": key,
			"size_bytes": info.Size,
			"format":     format,
			"row_count":  len(result.Rows),
			"truncated":  result.Truncated,
		})
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="result.%s"`, format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func queryResponse(result query.Result) map[string]any {
	response := map[string]any{
		"columns":     result.Columns,
		"rows":        result.Rows,
		"row_count":   len(result.Rows),
		"duration_ms": result.Duration.Milliseconds(),
	}
	if result.Truncated {
		response["truncated"] = true
	}
	if result.Failed() {
		response["error"] = result.Error
	}
	return response
}
