package nfs

import (
	"crypto/tls"
	"fmt"
)

// TLSConfig configures the RFC 9289 RPC-with-TLS upgrade path. When
// CertFile/KeyFile are empty, TLS is disabled and an AUTH_TLS probe is
// ignored (treated as an unrecognized auth flavor), matching try_tls_upgrade
// falling through when no TLS context is configured.
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// sunrpcALPN is the ALPN protocol identifier RFC 9289 Section 5.1
// registers for ONC RPC over TLS.
const sunrpcALPN = "sunrpc"

// buildTLSServerConfig loads the server certificate/key and enforces the
// RFC 9289 Section 5.2.1 minimum of TLS 1.3, with ALPN negotiation
// restricted to "sunrpc" so a generic HTTPS client can't accidentally
// complete a handshake against this port.
func buildTLSServerConfig(cfg TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load TLS certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
		NextProtos:   []string{sunrpcALPN},
	}, nil
}
