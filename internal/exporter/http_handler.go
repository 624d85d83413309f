package exporter

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/equipreg/internal/domain"
)

// Handler exposes the export as a GET endpoint returning a file attachment.
type Handler struct {
	service *Service
	// defaultLimit caps exports when the request carries no limit of its
	// own. Zero means unlimited.
	defaultLimit int
}

// NewHTTPHandler wraps the service.
func NewHTTPHandler(service *Service, defaultLimit int) http.Handler {
	return &Handler{service: service, defaultLimit: defaultLimit}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	filter := domain.ControllerFilter{
		SiteNames:  listParam(query["site"]),
		CellNames:  listParam(query["cell"]),
		Makes:      listParam(query["make"]),
		Models:     listParam(query["model"]),
		TextSearch: strings.TrimSpace(query.Get("search")),
	}

	for _, raw := range listParam(query["equipmentType"]) {
		if !domain.ValidEquipmentType(raw) {
			http.Error(w, fmt.Sprintf("unknown equipment type %q", raw), http.StatusBadRequest)
			return
		}
		filter.EquipmentTypes = append(filter.EquipmentTypes, domain.EquipmentType(raw))
	}

	if raw := strings.TrimSpace(query.Get("createdAfter")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid createdAfter: %v", err), http.StatusBadRequest)
			return
		}
		filter.CreatedAfter = &parsed
	}
	if raw := strings.TrimSpace(query.Get("createdBefore")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid createdBefore: %v", err), http.StatusBadRequest)
			return
		}
		filter.CreatedBefore = &parsed
	}

	limit := h.defaultLimit
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	filename := fmt.Sprintf("controllers-%s.csv", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	// Rows are fetched before the first byte is written, so a query failure
	// still yields a clean error response. A mid-stream write failure can only
	// cut the download short.
	if _, _, err := h.service.Export(r.Context(), w, filter, limit); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// listParam flattens repeated and comma-separated values into one list.
func listParam(values []string) []string {
	var result []string
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
	}
	return result
}
