package ghl

import (
	"context"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
)

// newHTTPClient builds the shared outbound client. The uTLS transport is
// opt-in via GHLSYNC_UTLS=1 for environments where the default Go TLS
// fingerprint gets filtered.
func newHTTPClient(timeout time.Duration) *http.Client {
	useUTLS := strings.TrimSpace(os.Getenv("GHLSYNC_UTLS")) == "1"
	return &http.Client{
		Timeout:   timeout,
		Transport: newTransport(useUTLS),
	}
}

func newTransport(useUTLS bool) http.RoundTripper {
	if !useUTLS {
		return &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			rawConn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host := addr
			if strings.Contains(addr, ":") {
				host, _, _ = net.SplitHostPort(addr)
			}
			config := &utls.Config{
				ServerName: host,
				NextProtos: []string{"h2", "http/1.1"},
			}
			uconn := utls.UClient(rawConn, config, utls.HelloChrome_120)
			if err := uconn.Handshake(); err != nil {
				_ = rawConn.Close()
				return nil, err
			}
			return uconn, nil
		},
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}
}
