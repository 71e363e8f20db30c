package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter builds the gateway: /collections/ is proxied to the collections
// instances, everything else is a 404.
func NewRouter(collectionsURLs ...string) (*mux.Router, error) {
	proxy, err := createReverseProxy(collectionsURLs)
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("API Gateway is healthy"))
	})
	router.PathPrefix("/collections/").Handler(proxy)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		audit("[Gateway] [Error] " + r.URL.Path + " from " + r.RemoteAddr + " (route not found)")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("404 - Route not found"))
	})
	return router, nil
}
