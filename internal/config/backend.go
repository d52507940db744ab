package config

import (
	"net/netip"
	"strings"
)

// Fallbacks used when the backend host or port is not configured.
const (
	DefaultBackendHost = "localhost"
	DefaultBackendPort = "8081"
)

// BackendConfig locates the dataset backend service.
type BackendConfig struct {
	HTTPS bool   `toml:"https"`
	Host  string `toml:"host"`
	Port  string `toml:"port"`
}

// BaseURL returns the backend base address as scheme://host:port.
// It is recomputed on each call and never fails.
func (c *BackendConfig) BaseURL() string {
	scheme := "http"
	if c.HTTPS {
		scheme = "https"
	}

	host := c.Host
	if host == "" {
		host = DefaultBackendHost
	}

	port := c.Port
	if port == "" {
		port = DefaultBackendPort
	}

	return scheme + "://" + formatHost(host) + ":" + port
}

// formatHost brackets IPv6 literals. Any other value, including one that
// already carries a port, is used verbatim.
func formatHost(host string) string {
	bare := strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if addr, err := netip.ParseAddr(bare); err == nil && addr.Is6() {
		return "[" + bare + "]"
	}
	return host
}
