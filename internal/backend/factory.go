package backend

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/valpere/scenetran/internal/run"
)

// aggregatorModelRe is the required shape of aggregator-routed model
// identifiers: a provider prefix, a slash, and a model name.
var aggregatorModelRe = regexp.MustCompile(`^[^/]+/.+`)

// aggregatorHosts are base-URL hosts recognized as aggregator-routed when
// the endpoint does not name its kind explicitly.
var aggregatorHosts = []string{"openrouter.ai"}

// ResolveKind returns the effective caller kind for an endpoint: the
// explicit configuration when present, otherwise an inference from the
// base-URL shape.
func ResolveKind(ep Endpoint) Kind {
	if ep.Kind != KindAuto {
		return ep.Kind
	}
	u, err := url.Parse(ep.BaseURL)
	if err == nil {
		host := strings.ToLower(u.Hostname())
		for _, h := range aggregatorHosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return KindAggregator
			}
		}
	}
	return KindGeneric
}

// ValidateEndpoint performs every check that can be done without touching
// the network. The configuration loader calls this so that bad model
// identifiers and disallowed providers are rejected at load time, never at
// call time; Construct repeats it as a guard.
func ValidateEndpoint(ep Endpoint) error {
	if ep.BaseURL == "" {
		return run.Errorf(run.KindConfiguration, "", "endpoint %s: base_url required", ep.Name)
	}
	if _, err := url.Parse(ep.BaseURL); err != nil {
		return run.Errorf(run.KindConfiguration, "", "endpoint %s: invalid base_url: %v", ep.Name, err)
	}
	if ep.Model == "" {
		return run.Errorf(run.KindConfiguration, "", "endpoint %s: model required", ep.Name)
	}

	switch k := ResolveKind(ep); k {
	case KindAggregator:
		if !aggregatorModelRe.MatchString(ep.Model) {
			return run.Errorf(run.KindConfiguration, "",
				"endpoint %s: aggregator model %q must be of the form provider/model", ep.Name, ep.Model)
		}
		if len(ep.AllowedProviders) > 0 {
			provider := ep.Model[:strings.Index(ep.Model, "/")]
			if !providerAllowed(provider, ep.AllowedProviders) {
				return run.Errorf(run.KindConfiguration, "",
					"endpoint %s: provider %q not in allow-list (permitted: %s)",
					ep.Name, provider, strings.Join(ep.AllowedProviders, ", "))
			}
		}
	case KindGeneric:
		if len(ep.AllowedProviders) > 0 {
			return run.Errorf(run.KindConfiguration, "",
				"endpoint %s: allowed_providers only applies to aggregator endpoints", ep.Name)
		}
	default:
		return run.Errorf(run.KindConfiguration, "", "endpoint %s: unknown kind %q", ep.Name, k)
	}
	return nil
}

func providerAllowed(provider string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(provider, a) {
			return true
		}
	}
	return false
}

// Construct builds the caller handle and the resolved settings for one
// endpoint. All failures here are configuration errors; nothing touches the
// network until the first Call (or Probe).
func Construct(ep Endpoint, s Settings) (Caller, ResolvedSettings, error) {
	if err := ValidateEndpoint(ep); err != nil {
		return nil, ResolvedSettings{}, err
	}
	rs, err := resolveSettings(s, ep.Timeout)
	if err != nil {
		return nil, ResolvedSettings{}, run.Wrap(run.KindConfiguration, "", err,
			fmt.Sprintf("endpoint %s", ep.Name))
	}

	client := &http.Client{} // per-call deadlines come from the caller's context

	switch ResolveKind(ep) {
	case KindAggregator:
		return newAggregatorCaller(ep, rs, client), rs, nil
	default:
		return newGenericCaller(ep, rs, client), rs, nil
	}
}
