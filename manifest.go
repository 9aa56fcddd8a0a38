package postal

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// DefaultManifestTimeout bounds a single manifest fetch. The manifest is a
// few kilobytes; anything slower than this is treated as unreachable.
const DefaultManifestTimeout = 10 * time.Second

// embeddedManifest is the manifest bundled at build time, used as a fallback
// when the hosted manifest is unreachable. It may lag behind the hosted copy
// but always describes at least the "default" version.
//
//go:embed metadata/models.json
var embeddedManifest []byte

// componentJSON is the wire form of a single component entry.
type componentJSON struct {
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
	Format string `json:"format,omitempty"`
}

// manifestJSON is the wire form of the manifest: version → component → entry.
type manifestJSON map[string]map[string]componentJSON

// manifestClient fetches and validates the model manifest.
type manifestClient struct {
	// url is the manifest location.
	url string

	// httpClient is used for the fetch.
	httpClient HTTPClient

	// logger receives diagnostic messages. May be nil.
	logger Logger

	// timeout bounds a single fetch attempt.
	timeout time.Duration
}

// newManifestClient creates a manifest client for the given URL.
func newManifestClient(url string, client HTTPClient, logger Logger) *manifestClient {
	return &manifestClient{
		url:        url,
		httpClient: client,
		logger:     logger,
		timeout:    DefaultManifestTimeout,
	}
}

// fetch retrieves and validates the manifest. When the remote source is
// unreachable it falls back to the embedded copy; when both are unusable it
// returns ErrManifestUnavailable. A document that was retrieved but does not
// match the schema returns ErrManifestMalformed, never a silent fallback.
func (c *manifestClient) fetch(ctx context.Context) (ModelManifest, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.fetchRemote(fetchCtx)
	if err != nil {
		// Caller cancellation is not "remote unreachable"; surface it
		// instead of answering with stale embedded data. Our own timeout
		// firing still falls through to the fallback.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("fetching manifest: %w", ctxErr)
		}
		if c.logger != nil {
			c.logger.Warn("manifest fetch failed, trying embedded fallback", "url", c.url, "error", err)
		}
		manifest, embErr := parseManifest(embeddedManifest)
		if embErr != nil {
			return nil, fmt.Errorf("%w: %s: %v (embedded fallback unusable: %v)", ErrManifestUnavailable, c.url, err, embErr)
		}
		return manifest, nil
	}

	manifest, err := parseManifest(raw)
	if err != nil {
		return nil, err
	}

	if c.logger != nil {
		c.logger.Debug("manifest fetched", "url", c.url, "versions", len(manifest))
	}
	return manifest, nil
}

// fetchRemote retrieves the raw manifest document from the configured URL.
func (c *manifestClient) fetchRemote(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest: %w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching manifest: status %d: %w", resp.StatusCode, ErrNetwork)
	}

	var buf []byte
	buf, err = readAllLimited(resp.Body, maxManifestSize)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w: %v", ErrNetwork, err)
	}
	return buf, nil
}

// maxManifestSize caps how much of a manifest response is read. A manifest
// larger than this is not a manifest.
const maxManifestSize = 1 << 20

// parseManifest decodes and validates a manifest document.
func parseManifest(data []byte) (ModelManifest, error) {
	var wire manifestJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestMalformed, err)
	}

	if len(wire) == 0 {
		return nil, fmt.Errorf("%w: no model versions declared", ErrManifestMalformed)
	}

	manifest := make(ModelManifest, len(wire))
	for version, components := range wire {
		if version == "" {
			return nil, fmt.Errorf("%w: empty version key", ErrManifestMalformed)
		}
		if len(components) == 0 {
			return nil, fmt.Errorf("%w: version %q has no components", ErrManifestMalformed, version)
		}

		spec := ModelVersionSpec{Version: version}
		for _, name := range orderComponents(components) {
			entry := components[name]
			if name == "" {
				return nil, fmt.Errorf("%w: version %q: empty component name", ErrManifestMalformed, version)
			}
			if entry.URL == "" {
				return nil, fmt.Errorf("%w: version %q: component %q missing url", ErrManifestMalformed, version, name)
			}
			if entry.SHA256 == "" {
				return nil, fmt.Errorf("%w: version %q: component %q missing sha256", ErrManifestMalformed, version, name)
			}
			format := entry.Format
			if format == "" {
				format = FormatTarGz
			}
			if format != FormatTarGz {
				return nil, fmt.Errorf("%w: version %q: component %q: unsupported format %q", ErrManifestMalformed, version, name, format)
			}
			spec.Components = append(spec.Components, ComponentSpec{
				Name: name,
				URL:  entry.URL,
				// Normalized so verification can compare against the
				// lowercase hex the hasher produces.
				SHA256: strings.ToLower(entry.SHA256),
				Format: format,
			})
		}
		manifest[version] = spec
	}

	return manifest, nil
}

// orderComponents returns component names with the canonical libpostal
// components first, then any extras alphabetically. This keeps spec order
// deterministic regardless of JSON map iteration.
func orderComponents(components map[string]componentJSON) []string {
	ordered := make([]string, 0, len(components))
	seen := make(map[string]bool, len(components))
	for _, name := range requiredComponents {
		if _, ok := components[name]; ok {
			ordered = append(ordered, name)
			seen[name] = true
		}
	}

	var extras []string
	for name := range components {
		if !seen[name] {
			extras = append(extras, name)
		}
	}
	sort.Strings(extras)

	return append(ordered, extras...)
}
