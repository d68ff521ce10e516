// Package traefik reads certificates from a traefik acme.json store.
package traefik

import (
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

var ErrDomainNotFound = errors.New("domain not found")

type certEntry struct {
	Certificate string `json:"certificate"`
	Key         string `json:"key"`
}

// LoadFromFile returns the key pair for domain stored in the acme.json file
func LoadFromFile(file, domain string) (tls.Certificate, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return tls.Certificate{}, err
	}
	return Parse(string(data), domain)
}

// Parse returns the key pair for domain from the acme.json content
func Parse(jsonData, domain string) (tls.Certificate, error) {
	entry, err := lookup(jsonData, domain)
	if err != nil {
		return tls.Certificate{}, err
	}
	certPEM, err := base64.StdEncoding.DecodeString(entry.Certificate)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decode certificate: %w", err)
	}
	keyPEM, err := base64.StdEncoding.DecodeString(entry.Key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decode key: %w", err)
	}
	return tls.X509KeyPair(certPEM, keyPEM)
}

// the certificates are grouped by resolver name, which we don't know here
func lookup(jsonData, domain string) (*certEntry, error) {
	obj, err := oj.ParseString(jsonData)
	if err != nil {
		return nil, err
	}
	path, err := jp.ParseString(
		fmt.Sprintf(`$..Certificates[?(@.domain.main == %q)]`, domain))
	if err != nil {
		return nil, err
	}
	res := path.Get(obj)
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDomainNotFound, domain)
	}
	ret := &certEntry{}
	if err := oj.Unmarshal([]byte(oj.JSON(res[0])), ret); err != nil {
		return nil, err
	}
	return ret, nil
}
