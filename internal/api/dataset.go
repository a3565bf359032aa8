package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/askdata/askdata/internal/auth"
	"github.com/askdata/askdata/internal/config"
	"github.com/askdata/askdata/internal/dataset"
	"github.com/askdata/askdata/internal/storage"
)

type importRequest struct {
	ObjectKey string `json:"object_key"`
}

func handleUploadDataset(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	s := lookupSession(deps, w, r, auth.RoleDatasetWriter)
	if s == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, cfg.Upload.MaxBytes)
	raw, filename, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDomainError(w, r, err)
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_UPLOAD", err.Error(), false, nil)
		return
	}

	kind, err := dataset.KindFromFilename(filename)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	result, err := s.Ingest(r.Context(), raw, string(kind))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func handleImportDataset(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.ObjectStore == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "IMPORT_NOT_CONFIGURED", "object store is not configured", false, nil)
		return
	}
	s := lookupSession(deps, w, r, auth.RoleDatasetWriter)
	if s == nil {
		return
	}

	var req importRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid import request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.ObjectKey) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "OBJECT_KEY_REQUIRED", "object_key is required", false, nil)
		return
	}

	kind, err := dataset.KindFromFilename(req.ObjectKey)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	raw, err := storage.ReadObject(r.Context(), deps.ObjectStore, req.ObjectKey, cfg.Upload.MaxBytes)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrObjectTooLarge) {
			writeDomainError(w, r, err)
			return
		}
		writeError(r.Context(), w, http.StatusBadGateway, "OBJECT_STORE_ERROR", "failed to read object", true, map[string]any{"details": err.Error()})
		return
	}

	result, err := s.Ingest(r.Context(), raw, string(kind))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	s := lookupSession(deps, w, r, auth.RoleQueryReader)
	if s == nil {
		return
	}
	schema, err := s.Schema(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"table":   dataset.TableName,
		"columns": schema,
	})
}

// readUpload returns the file bytes and name from a multipart "file" field or,
// for any other content type, the raw body named by ?filename=.
func readUpload(r *http.Request) ([]byte, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", err
		}
		defer func() { _ = file.Close() }()
		raw, err := io.ReadAll(file)
		if err != nil {
			return nil, "", err
		}
		return raw, header.Filename, nil
	}

	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	if filename == "" {
		return nil, "", errors.New("filename query parameter is required for raw uploads")
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", err
	}
	return raw, filename, nil
}
