package client

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
)

// TLS configuration errors.
var (
	ErrInvalidTLSVersion = errors.New("client: invalid TLS version")
	ErrMinVersionTooHigh = errors.New("client: minimum TLS version is higher than maximum")
	ErrInvalidCAPEM      = errors.New("client: invalid CA PEM data")
)

// TLSConfig describes how the client verifies the server.
type TLSConfig struct {
	// CAFile is a PEM bundle of trusted roots. System roots are used when
	// neither CAFile nor CAPEM is set.
	CAFile string
	CAPEM  []byte

	// ServerName overrides the name checked against the certificate.
	ServerName string

	// InsecureSkipVerify disables certificate verification.
	InsecureSkipVerify bool

	// MinVersion and MaxVersion default to TLS 1.2 and TLS 1.3.
	MinVersion uint16
	MaxVersion uint16
}

// ParseTLSVersion accepts "1.0" through "1.3", with or without a "TLS"
// prefix. An empty string yields 0.
func ParseTLSVersion(s string) (uint16, error) {
	v := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "TLS")
	switch strings.TrimSpace(v) {
	case "":
		return 0, nil
	case "1.0", "10":
		return tls.VersionTLS10, nil
	case "1.1", "11":
		return tls.VersionTLS11, nil
	case "1.2", "12":
		return tls.VersionTLS12, nil
	case "1.3", "13":
		return tls.VersionTLS13, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTLSVersion, s)
}

// LoadTLSConfig builds a *tls.Config for dialing host.
func LoadTLSConfig(cfg *TLSConfig, host string) (*tls.Config, error) {
	if cfg == nil {
		cfg = &TLSConfig{}
	}
	minVersion, maxVersion := cfg.MinVersion, cfg.MaxVersion
	if minVersion == 0 {
		minVersion = tls.VersionTLS12
	}
	if maxVersion == 0 {
		maxVersion = tls.VersionTLS13
	}
	if err := validateTLSVersions(minVersion, maxVersion); err != nil {
		return nil, err
	}

	pemData := cfg.CAPEM
	if len(pemData) == 0 && cfg.CAFile != "" {
		data, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("client: read CA file: %w", err)
		}
		pemData = data
	}

	var roots *x509.CertPool
	if len(pemData) > 0 {
		roots = x509.NewCertPool()
		if !roots.AppendCertsFromPEM(pemData) {
			return nil, ErrInvalidCAPEM
		}
	}

	serverName := cfg.ServerName
	if serverName == "" {
		serverName = host
	}
	return &tls.Config{
		RootCAs:            roots,
		ServerName:         serverName,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		MinVersion:         minVersion,
		MaxVersion:         maxVersion,
	}, nil
}

func validateTLSVersions(minVersion, maxVersion uint16) error {
	valid := func(v uint16) bool {
		switch v {
		case tls.VersionTLS10, tls.VersionTLS11, tls.VersionTLS12, tls.VersionTLS13:
			return true
		}
		return false
	}
	if !valid(minVersion) || !valid(maxVersion) {
		return ErrInvalidTLSVersion
	}
	if minVersion > maxVersion {
		return ErrMinVersionTooHigh
	}
	return nil
}
