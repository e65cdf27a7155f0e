package mpesa

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidateCallbackURL checks that raw is an https URL with a host the
// provider can reach from the public internet.
func ValidateCallbackURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: not configured", ErrInvalidCallbackURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCallbackURL, err)
	}

	if u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be https, got %q", ErrInvalidCallbackURL, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidCallbackURL)
	}

	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: localhost is not reachable by the provider", ErrInvalidCallbackURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsUnspecified() || ip.IsPrivate() || ip.IsLinkLocalUnicast() {
			return fmt.Errorf("%w: %s is not a public address", ErrInvalidCallbackURL, host)
		}
		return nil
	}

	if !strings.Contains(host, ".") {
		return fmt.Errorf("%w: %q is not a fully qualified domain", ErrInvalidCallbackURL, host)
	}

	return nil
}
