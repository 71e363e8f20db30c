package api

import (
	"bytes"
	"fmt"
	"log"
	"net/http"

	"CollectRecon/api/constants"
	"CollectRecon/internal/logger"
	"CollectRecon/pkg/loadbalancer"
)

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	return r.RemoteAddr
}

func audit(msg string) {
	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit(msg)
		return
	}
	log.Println(msg)
}

// createReverseProxy forwards to the backend instances round robin and
// audits the request and its outcome. Request bodies are never buffered:
// uploads stream through.
func createReverseProxy(targets []string) (http.HandlerFunc, error) {
	lb, err := loadbalancer.NewLoadBalancer(targets)
	if err != nil {
		return nil, fmt.Errorf("gateway upstreams %v: %w", targets, err)
	}
	lb.Proxy().ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		audit(fmt.Sprintf("[Gateway][ERROR] Proxy error for %s: %v", r.URL.Path, err))
		RespondWithError(w, http.StatusBadGateway, constants.ErrInternalServer)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get(constants.FormFieldUserID)
		audit(fmt.Sprintf("[Gateway] Incoming request: %s %s from %s userId=%s", r.Method, r.URL.Path, extractClientIP(r), userID))

		target := lb.GetNextServer()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		lb.ServeHTTP(rw, loadbalancer.Pin(r, target))
		if rw.statusCode >= 400 {
			audit(fmt.Sprintf("[Gateway][ERROR] Proxied to %s for %s, status %d, error: %s", target.Host, r.URL.Path, rw.statusCode, rw.body.String()))
		} else {
			audit(fmt.Sprintf("[Gateway] Proxied to %s for %s, status %d", target.Host, r.URL.Path, rw.statusCode))
		}
	}, nil
}

// responseWriter captures the status and, for error responses, the body.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode >= 400 && rw.body.Len() < 4096 {
		rw.body.Write(b)
	}
	return rw.ResponseWriter.Write(b)
}

// Flush keeps the activity SSE stream live through the proxy.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
