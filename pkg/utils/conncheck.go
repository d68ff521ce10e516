package utils

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/mpapenbr/rally-manager-go/log"
)

// WaitForTCP tries to connect to addr until it succeeds or timeout is reached
func WaitForTCP(ctx context.Context, addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	log.Debug("wait for tcp connection",
		log.String("addr", addr),
		log.String("timeout", timeout.String()))
	var d net.Dialer
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			log.Debug("tcp connection successful",
				log.String("addr", addr),
				log.String("duration", time.Since(start).String()))
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s could not be reached after %v", addr, timeout)
		case <-ticker.C:
		}
	}
}

// ExtractFromDBURL returns host:port of a postgres connection url.
// The default port 5432 is used if none is given.
func ExtractFromDBURL(dbURL string) string {
	return hostPort(dbURL, map[string]string{
		"postgresql": "5432",
		"postgres":   "5432",
	})
}

// ExtractFromNatsURL returns host:port of a nats url
func ExtractFromNatsURL(natsURL string) string {
	return hostPort(natsURL, map[string]string{
		"nats": "4222",
		"tls":  "4222",
	})
}

func hostPort(raw string, defaultPorts map[string]string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	defaultPort, ok := defaultPorts[u.Scheme]
	if !ok {
		return ""
	}
	if u.Port() != "" {
		return u.Host
	}
	return net.JoinHostPort(u.Hostname(), defaultPort)
}
