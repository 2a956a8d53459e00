package network

import (
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultClientConfig(t *testing.T) {
	config := NewDefaultClientConfig()

	assert.True(t, config.ForceHTTP2, "HTTP/2 should be attempted by default")
	assert.False(t, config.IgnoreTLSErrors)
	assert.Equal(t, DefaultRequestTimeout, config.RequestTimeout)
	assert.Equal(t, DefaultMaxIdleConnsPerHost, config.MaxIdleConnsPerHost)
	assert.NotNil(t, config.Logger)
}

func TestNewHTTPTransport_ConfigurationMapping(t *testing.T) {
	cfg := &ClientConfig{
		IgnoreTLSErrors:       true,
		TLSHandshakeTimeout:   3 * time.Second,
		ResponseHeaderTimeout: 7 * time.Second,
		IdleConnTimeout:       time.Minute,
		MaxIdleConnsPerHost:   2,
	}

	transport := NewHTTPTransport(cfg)
	require.NotNil(t, transport)

	assert.Equal(t, cfg.TLSHandshakeTimeout, transport.TLSHandshakeTimeout)
	assert.Equal(t, cfg.ResponseHeaderTimeout, transport.ResponseHeaderTimeout)
	assert.Equal(t, cfg.IdleConnTimeout, transport.IdleConnTimeout)
	assert.Equal(t, cfg.MaxIdleConnsPerHost, transport.MaxIdleConnsPerHost)
	assert.True(t, transport.DisableCompression, "decoding is left to the client wrapper")
	require.NotNil(t, transport.TLSClientConfig)
	assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
	assert.Equal(t, uint16(tls.VersionTLS12), transport.TLSClientConfig.MinVersion)
	assert.NotNil(t, cfg.Logger, "a nil logger is replaced")
}

func TestNewHTTPTransport_NilConfig(t *testing.T) {
	assert.NotPanics(t, func() {
		transport := NewHTTPTransport(nil)
		assert.NotNil(t, transport)
		assert.NotNil(t, transport.DialContext, "DialContext should be configured with the default dialer")
	})
}

func TestNewHTTPTransport_HTTP2(t *testing.T) {
	enabled := NewHTTPTransport(NewDefaultClientConfig())
	assert.Contains(t, enabled.TLSNextProto, "h2", "http2.ConfigureTransport registers the h2 upgrade")

	cfg := NewDefaultClientConfig()
	cfg.ForceHTTP2 = false
	disabled := NewHTTPTransport(cfg)
	assert.Nil(t, disabled.TLSNextProto)
	assert.False(t, disabled.ForceAttemptHTTP2)
}

func TestClient_HTTPS_HTTP2(t *testing.T) {
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	server.EnableHTTP2 = true
	server.StartTLS()
	defer server.Close()

	cfg := NewDefaultClientConfig()
	cfg.IgnoreTLSErrors = true
	resp, err := NewClient(cfg).Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "HTTP/2.0", resp.Proto)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestClient_IgnoreTLSErrors(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := NewClient(nil).Get(server.URL)
	assert.Error(t, err, "the self-signed certificate is rejected by default")

	cfg := NewDefaultClientConfig()
	cfg.IgnoreTLSErrors = true
	resp, err := NewClient(cfg).Get(server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestClient_RequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := NewDefaultClientConfig()
	cfg.RequestTimeout = 500 * time.Millisecond
	resp, err := NewClient(cfg).Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	cfg.RequestTimeout = 50 * time.Millisecond
	_, err = NewClient(cfg).Get(server.URL)
	require.Error(t, err)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestClient_ResponseHeaderTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hijacker, ok := w.(http.Hijacker)
		if !ok {
			return
		}
		conn, _, err := hijacker.Hijack()
		if err != nil {
			return
		}
		time.Sleep(300 * time.Millisecond)
		conn.Close()
	}))
	defer server.Close()

	cfg := NewDefaultClientConfig()
	cfg.ResponseHeaderTimeout = 50 * time.Millisecond
	_, err := NewClient(cfg).Get(server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout awaiting response headers")
}

func TestClient_ConnectionReuse(t *testing.T) {
	var conns atomic.Int32
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	server.Config.ConnState = func(conn net.Conn, state http.ConnState) {
		if state == http.StateNew {
			conns.Add(1)
		}
	}
	server.Start()
	defer server.Close()

	client := NewClient(nil)
	for i := 0; i < 3; i++ {
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	assert.Equal(t, int32(1), conns.Load(), "the save log is polled over one kept-alive connection")
}
