package loadbalancer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
)

var ErrNoServers = errors.New("loadbalancer: no upstream servers")

// LoadBalancer spreads requests over upstream servers round robin.
type LoadBalancer struct {
	servers []*url.URL
	mu      sync.Mutex
	current int
	proxy   *httputil.ReverseProxy
}

func NewLoadBalancer(servers []string) (*LoadBalancer, error) {
	lb := &LoadBalancer{}
	for _, s := range servers {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		u, err := url.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("bad upstream %q: %w", s, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("bad upstream %q: scheme and host are required", s)
		}
		lb.servers = append(lb.servers, u)
	}
	if len(lb.servers) == 0 {
		return nil, ErrNoServers
	}
	lb.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			target, ok := pr.In.Context().Value(targetKey{}).(*url.URL)
			if !ok {
				target = lb.GetNextServer()
			}
			pr.SetURL(target)
			pr.Out.Host = pr.In.Host
			pr.SetXForwarded()
		},
	}
	return lb, nil
}

func (lb *LoadBalancer) GetNextServer() *url.URL {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	server := lb.servers[lb.current]
	lb.current = (lb.current + 1) % len(lb.servers)
	return server
}

// Proxy exposes the underlying reverse proxy so callers can set an
// ErrorHandler or ModifyResponse.
func (lb *LoadBalancer) Proxy() *httputil.ReverseProxy { return lb.proxy }

type targetKey struct{}

// Pin fixes the upstream for r, so a caller that logs the target and the
// proxy agree on it.
func Pin(r *http.Request, target *url.URL) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), targetKey{}, target))
}

func (lb *LoadBalancer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lb.proxy.ServeHTTP(w, r)
}
