package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

var (
	ErrTLSCertFileRequired = errors.New("transport: tls cert file required")
	ErrTLSKeyFileRequired  = errors.New("transport: tls key file required")
)

// TLSConfig describes the client side of a TLS connection. CertFile and
// KeyFile are optional and present a client certificate when both are set.
type TLSConfig struct {
	Enabled            bool   `toml:"enabled"`
	CAFile             string `toml:"ca_file"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// Validate reports missing files for an enabled configuration. Without a CA
// bundle the system roots are used unless verification is skipped.
func (c TLSConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	cert := strings.TrimSpace(c.CertFile)
	key := strings.TrimSpace(c.KeyFile)
	if cert != "" && key == "" {
		return ErrTLSKeyFileRequired
	}
	if key != "" && cert == "" {
		return ErrTLSCertFileRequired
	}
	return nil
}

// ClientConfig builds the crypto/tls configuration for dialing address.
func (c TLSConfig) ClientConfig(address string) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.InsecureSkipVerify,
	}

	serverName := strings.TrimSpace(c.ServerName)
	if serverName == "" {
		serverName = address
		if host, _, err := net.SplitHostPort(address); err == nil {
			serverName = host
		}
	}
	cfg.ServerName = serverName

	if caPath := strings.TrimSpace(c.CAFile); caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("transport: parse tls ca bundle: %s", caPath)
		}
		cfg.RootCAs = pool
	}

	if strings.TrimSpace(c.CertFile) != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
