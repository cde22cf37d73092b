package protocol

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// DecodeConfig decodes the inline settings of a connector into out.
// Durations may be given as strings like "10s".
func DecodeConfig(name string, raw map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder for connector '%s': %w", name, err)
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("failed to decode config for connector '%s': %w", name, err)
	}
	return nil
}

// NormalizePath makes p start and end with "/".
func NormalizePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// BaseURL joins scheme and host, e.g. "https" and "mds.datacite.org".
func BaseURL(scheme, host string) (string, error) {
	if host == "" {
		return "", fmt.Errorf("host is required")
	}
	if scheme == "" {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: host}
	return u.String(), nil
}
