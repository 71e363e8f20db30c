package collections

import (
	"net/http"

	"CollectRecon/api"
	"CollectRecon/api/constants"

	"github.com/gorilla/mux"
)

// NewRouter mounts every collections endpoint under /collections.
func NewRouter(e *Engine, sweeper SweepRunner) *mux.Router {
	router := mux.NewRouter()
	c := router.PathPrefix("/collections").Subrouter()

	c.Handle("/uploads", UploadHandler(e)).Methods(http.MethodPost)
	c.Handle("/uploads", ListBatchesHandler(e)).Methods(http.MethodGet)
	c.Handle("/uploads/check", CheckDuplicateHandler(e)).Methods(http.MethodPost)
	c.Handle("/uploads/{id}", GetBatchHandler(e)).Methods(http.MethodGet)
	c.Handle("/template", TemplateHandler()).Methods(http.MethodGet)

	c.Handle("/arrangements", CreateArrangementHandler(e)).Methods(http.MethodPost)
	c.Handle("/arrangements/sweep", SweepHandler(sweeper)).Methods(http.MethodPost)
	c.Handle("/arrangements/{id}", GetArrangementHandler(e)).Methods(http.MethodGet)
	c.Handle("/arrangements/{id}/paid", ConfirmPaidHandler(e)).Methods(http.MethodPost)
	c.Handle("/accounts/{number}/arrangements", ListAccountArrangementsHandler(e)).Methods(http.MethodGet)

	c.HandleFunc("/activity/stream", e.Stream.HandleSSE).Methods(http.MethodGet)
	c.Handle("/activity", ActivityHandler(e)).Methods(http.MethodGet)
	c.Handle("/health", HealthHandler(e)).Methods(http.MethodGet)

	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.RespondWithError(w, http.StatusMethodNotAllowed, constants.ErrMethodNotAllowed)
	})
	return router
}
