package loadbalancer

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backend(name string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s %s %s", name, r.URL.Path, r.Header.Get("X-Forwarded-Host"))
	}))
}

func TestRoundRobin(t *testing.T) {
	a, b := backend("a"), backend("b")
	defer a.Close()
	defer b.Close()

	lb, err := NewLoadBalancer([]string{a.URL, " ", b.URL})
	require.NoError(t, err)

	var got []string
	for i := 0; i < 4; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "http://gw.local/collections/health", nil)
		lb.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		got = append(got, rec.Body.String())
	}
	assert.Equal(t, []string{
		"a /collections/health gw.local",
		"b /collections/health gw.local",
		"a /collections/health gw.local",
		"b /collections/health gw.local",
	}, got)
}

func TestPinOverridesRotation(t *testing.T) {
	a, b := backend("a"), backend("b")
	defer a.Close()
	defer b.Close()

	lb, err := NewLoadBalancer([]string{a.URL, b.URL})
	require.NoError(t, err)
	second := lb.servers[1]

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		lb.ServeHTTP(rec, Pin(httptest.NewRequest(http.MethodGet, "/x", nil), second))
		assert.Contains(t, rec.Body.String(), "b /x")
	}
	assert.Equal(t, a.URL, lb.GetNextServer().String())
}

func TestNewLoadBalancerRejectsBadUpstreams(t *testing.T) {
	_, err := NewLoadBalancer(nil)
	assert.ErrorIs(t, err, ErrNoServers)

	_, err = NewLoadBalancer([]string{"://nope"})
	assert.Error(t, err)

	_, err = NewLoadBalancer([]string{"localhost:6143"})
	assert.Error(t, err)
}
