package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/rally-manager-go/log"
	"github.com/mpapenbr/rally-manager-go/pkg/config"
	"github.com/mpapenbr/rally-manager-go/pkg/utils/certs/traefik"
)

type certs struct {
	log  *log.Logger
	mu   sync.RWMutex
	cert *tls.Certificate
}

// newTLSConfig returns nil if no certificate is configured.
// Changes to the certificate files are picked up until ctx is done.
func newTLSConfig(ctx context.Context) (*tls.Config, error) {
	c := &certs{log: log.Default().Named("certs")}
	if err := c.loadCert(); err != nil {
		return nil, err
	}
	if c.cert == nil {
		return nil, nil
	}
	ret := &tls.Config{
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			c.mu.RLock()
			defer c.mu.RUnlock()
			return c.cert, nil
		},
		MinVersion: tls.VersionTLS13,
	}
	if config.TLSCAFile != "" {
		c.log.Info("Loading ca cert", log.String("file", config.TLSCAFile))
		caCert, err := os.ReadFile(config.TLSCAFile)
		if err != nil {
			return nil, err
		}
		caCertPool := x509.NewCertPool()
		if ok := caCertPool.AppendCertsFromPEM(caCert); !ok {
			return nil, errors.New("could not append ca cert to pool")
		}
		ret.ClientCAs = caCertPool
		ret.ClientAuth = tls.VerifyClientCertIfGiven
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, f := range []string{config.TLSCertFile, config.TLSKeyFile, config.TraefikCerts} {
		if f == "" {
			continue
		}
		if err := watcher.Add(f); err != nil {
			c.log.Error("could not watch file", log.String("file", f), log.ErrorField(err))
		}
	}
	go c.watch(ctx, watcher)
	return ret, nil
}

func (c *certs) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()
	for {
		select {
		case <-ctx.Done():
			c.log.Info("context done, stopping cert reload")
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
				c.log.Info("cert file changed, reloading cert",
					log.String("file", event.Name))
				if err := c.loadCert(); err != nil {
					// keep serving the previous certificate
					c.log.Error("could not reload cert", log.ErrorField(err))
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.log.Error("watcher error", log.ErrorField(err))
		}
	}
}

func (c *certs) loadCert() error {
	var cert tls.Certificate
	var err error
	switch {
	case config.TraefikCerts != "" && config.TraefikCertDomain != "":
		c.log.Info("Looking up traefik certs",
			log.String("file", config.TraefikCerts),
			log.String("domain", config.TraefikCertDomain))
		cert, err = traefik.LoadFromFile(config.TraefikCerts, config.TraefikCertDomain)
	case config.TLSCertFile != "" && config.TLSKeyFile != "":
		c.log.Info("Loading cert",
			log.String("key", config.TLSKeyFile),
			log.String("cert", config.TLSCertFile))
		cert, err = tls.LoadX509KeyPair(config.TLSCertFile, config.TLSKeyFile)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cert = &cert
	return nil
}
