package geocoding

import (
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// adapterDefaults are the values an adapter falls back to when the configuration is silent.
type adapterDefaults struct {
	baseURL     string
	reverseURL  string
	apiKeyParam string
	queryKey    string
	minDelay    time.Duration
	requiresKey bool
	exclude     []string
}

// baseAdapter carries the configuration shared by every adapter.
type baseAdapter struct {
	name           string
	baseURL        string
	reverseURL     string
	apiKey         string
	apiKeyParam    string
	queryKey       string
	minDelay       time.Duration
	requiresKey    bool
	defaultExclude []string
	configExclude  []string
	searchOptions  map[string]string
	reverseOptions map[string]string
}

func newBaseAdapter(name string, def adapterDefaults, cfg ProviderConfig) baseAdapter {
	base := baseAdapter{
		name:           name,
		baseURL:        def.baseURL,
		reverseURL:     def.reverseURL,
		apiKey:         cfg.APIKey,
		apiKeyParam:    def.apiKeyParam,
		queryKey:       def.queryKey,
		minDelay:       def.minDelay,
		requiresKey:    def.requiresKey,
		defaultExclude: slices.Clone(def.exclude),
		configExclude:  slices.Clone(cfg.ExcludeFields),
		searchOptions:  maps.Clone(cfg.RequestOptions),
		reverseOptions: maps.Clone(cfg.ReverseRequestOptions),
	}

	if cfg.BaseURL != "" {
		base.baseURL = cfg.BaseURL
	}
	if cfg.ReverseBaseURL != "" {
		base.reverseURL = cfg.ReverseBaseURL
	}
	if base.reverseURL == "" {
		base.reverseURL = base.baseURL
	}
	if cfg.APIKeyParam != "" {
		base.apiKeyParam = cfg.APIKeyParam
	}
	if cfg.FreeformSearchKey != "" {
		base.queryKey = cfg.FreeformSearchKey
	}
	if cfg.MinDebounceDelay != nil {
		base.minDelay = *cfg.MinDebounceDelay
	}

	return base
}

func (b *baseAdapter) Name() string { return b.name }

func (b *baseAdapter) RequiresAPIKey() bool { return b.requiresKey }

func (b *baseAdapter) APIKey() string { return b.apiKey }

func (b *baseAdapter) MinDebounceDelay() time.Duration { return b.minDelay }

// DefaultExcludeFields returns the adapter's own exclusion list.
func (b *baseAdapter) DefaultExcludeFields() []string {
	return slices.Clone(b.defaultExclude)
}

// ExcludeFields returns the adapter defaults, the configured additions and the given
// additions merged in that order, without duplicates.
func (b *baseAdapter) ExcludeFields(additional []string) []string {
	merged := make([]string, 0, len(b.defaultExclude)+len(b.configExclude)+len(additional))
	seen := make(map[string]struct{}, cap(merged))

	for _, list := range [][]string{b.defaultExclude, b.configExclude, additional} {
		for _, field := range list {
			if field == "" {
				continue
			}
			if _, dup := seen[field]; dup {
				continue
			}
			seen[field] = struct{}{}
			merged = append(merged, field)
		}
	}

	return merged
}

// searchParams seeds the query parameters with the adapter's static values
// overlaid by the configured request options.
func (b *baseAdapter) searchParams(static map[string]string) url.Values {
	return buildParams(static, b.searchOptions)
}

func (b *baseAdapter) reverseParams(static map[string]string) url.Values {
	return buildParams(static, b.reverseOptions)
}

// setAPIKey injects the key under the provider-specific parameter when both are known.
func (b *baseAdapter) setAPIKey(params url.Values) {
	if b.apiKey != "" && b.apiKeyParam != "" {
		params.Set(b.apiKeyParam, b.apiKey)
	}
}

func buildParams(static, overrides map[string]string) url.Values {
	params := url.Values{}
	for key, value := range static {
		params.Set(key, value)
	}
	for key, value := range overrides {
		params.Set(key, value)
	}

	return params
}

func joinCodes(codes []string, sep string, upper bool) string {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if upper {
			out = append(out, strings.ToUpper(code))
		} else {
			out = append(out, strings.ToLower(code))
		}
	}

	return strings.Join(out, sep)
}

func formatCoord(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
