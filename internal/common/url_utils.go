package common

import (
	"net/url"
	"sort"
	"strings"
)

// trackingParams are query keys stripped during canonicalization. Wire
// services append these to shared links; the same story arrives with
// different values from every feed that republishes it.
var trackingParams = map[string]bool{
	"fbclid":      true,
	"gclid":       true,
	"msclkid":     true,
	"mc_cid":      true,
	"mc_eid":      true,
	"cmpid":       true,
	"ref":         true,
	"soc_src":     true,
	"soc_trk":     true,
	"ned":         true,
	"partner":     true,
	"yptr":        true,
	"guccounter":  true,
	"guce_referrer": true,
}

// CanonicalURL normalizes a story link so the same article fingerprints
// identically across feeds. Lowercases scheme and host, drops fragments,
// default ports and tracking parameters, and sorts surviving query keys.
// Returns the input unchanged when it does not parse as an absolute URL.
func CanonicalURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return trimmed
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	if host, port, found := strings.Cut(parsed.Host, ":"); found {
		if (parsed.Scheme == "http" && port == "80") || (parsed.Scheme == "https" && port == "443") {
			parsed.Host = host
		}
	}
	parsed.Host = strings.TrimPrefix(parsed.Host, "www.")

	if parsed.RawQuery != "" {
		values := parsed.Query()
		keys := make([]string, 0, len(values))
		for key := range values {
			if trackingParams[key] || strings.HasPrefix(key, "utm_") {
				continue
			}
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var rebuilt url.Values
		if len(keys) > 0 {
			rebuilt = make(url.Values, len(keys))
			for _, key := range keys {
				rebuilt[key] = values[key]
			}
		}
		parsed.RawQuery = rebuilt.Encode()
	}

	if parsed.Path != "/" {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	return parsed.String()
}

// CanonicalHost extracts the normalized host from a URL, or "" when the
// value does not parse.
func CanonicalHost(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
}
