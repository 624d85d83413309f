package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/equipreg/internal/domain"
)

// Handler exposes import, validation, row counting, the file template, and
// the run ledger over HTTP.
type Handler struct {
	service  *Service
	defaults domain.ImportOptions
}

// NewHTTPHandler wraps the service. The defaults fill option fields the
// request leaves unset, notably the background threshold.
func NewHTTPHandler(service *Service, defaults domain.ImportOptions) http.Handler {
	return &Handler{service: service, defaults: defaults}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/template"):
		h.handleTemplate(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/validate"):
		h.handleValidate(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/count"):
		h.handleCount(w, r)
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/runs"):
		h.handleRuns(w, r)
	case r.Method == http.MethodPost:
		h.handleImport(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *Handler) handleTemplate(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="controller_import_template.csv"`)
	_, _ = w.Write(h.service.Template())
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	data, _, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	result, err := h.service.Validate(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCount(w http.ResponseWriter, r *http.Request) {
	data, _, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	count, err := h.service.CountRows(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total_rows": count})
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	data, header, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	options := h.defaults
	options.CreateMissing = formBool(r, "createMissing", options.CreateMissing)
	options.ValidateOnly = formBool(r, "validateOnly", options.ValidateOnly)

	policy, err := domain.ParseDuplicatePolicy(r.FormValue("duplicateHandling"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	options.DuplicateHandling = policy

	if raw := strings.TrimSpace(r.FormValue("backgroundThreshold")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "backgroundThreshold must be zero or a positive integer", http.StatusBadRequest)
			return
		}
		options.BackgroundThreshold = parsed
	}

	userID := strings.TrimSpace(r.FormValue("userId"))
	if userID == "" {
		userID = "anonymous"
	}

	result, err := h.service.Import(r.Context(), header.Filename, data, options, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	if idx := strings.LastIndex(path, "/runs/"); idx != -1 {
		runID, err := uuid.Parse(path[idx+len("/runs/"):])
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid run identifier: %v", err), http.StatusBadRequest)
			return
		}
		run, err := h.service.Run(r.Context(), runID)
		if err != nil {
			http.Error(w, fmt.Sprintf("run not found: %v", err), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, run)
		return
	}

	query := r.URL.Query()
	limit := 20
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	offset := 0
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "offset must be zero or positive", http.StatusBadRequest)
			return
		}
		offset = parsed
	}
	runs, err := h.service.ListRuns(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, fmt.Sprintf("list runs: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, *multipart.FileHeader, bool) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return nil, nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return nil, nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return nil, nil, false
	}
	return data, header, true
}

func formBool(r *http.Request, key string, fallback bool) bool {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
