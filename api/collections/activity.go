package collections

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"CollectRecon/api"
	"CollectRecon/api/constants"
	"CollectRecon/internal/schema"
)

func ActivityHandler(e *Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if l := r.URL.Query().Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n <= 0 {
				api.RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit parameter: %s", l))
				return
			}
			limit = n
		}
		events, err := e.Activity.RecentActivity(r.Context(), limit)
		if err != nil {
			api.LogError("recent activity: %v", err)
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrInternalServer)
			return
		}
		api.RespondWithPayload(w, true, "", events)
	})
}

// TemplateHandler serves an empty upload template with the canonical
// headers and one example row.
func TemplateHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			buf         bytes.Buffer
			err         error
			contentType string
			name        string
		)
		switch strings.ToLower(r.URL.Query().Get("format")) {
		case "", "csv":
			err = schema.WriteTemplateCSV(&buf)
			contentType, name = constants.ContentTypeCSV, constants.TemplateCSVName
		case "xlsx":
			err = schema.WriteTemplateXLSX(&buf)
			contentType, name = constants.ContentTypeXLSX, constants.TemplateXLSName
		default:
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrInvalidTemplate)
			return
		}
		if err != nil {
			api.LogError("render template: %v", err)
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrInternalServer)
			return
		}
		w.Header().Set(constants.ContentTypeText, contentType)
		w.Header().Set(constants.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
		w.Write(buf.Bytes())
	})
}

func HealthHandler(e *Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"success":     true,
			"status":      "ok",
			"sse_clients": e.Stream.ClientCount(),
		})
	})
}
