package registry

import (
	"fmt"
	"os"
	"strings"
)

// Env indirection prefix for webhook URLs and header values. A value of the
// form "env:NAME" is replaced by the environment variable NAME at snapshot
// construction, so workers always see the cached resolved form.
const envPrefix = "env:"

// HeaderSpec is an unresolved header as stored in trigger configuration.
// Exactly one of Value or ValueFromEnv should be set.
type HeaderSpec struct {
	Name         string `json:"name"`
	Value        string `json:"value,omitempty"`
	ValueFromEnv string `json:"value_from_env,omitempty"`
}

// ResolveWebhook resolves a webhook URL that may use env indirection.
func ResolveWebhook(raw string) (string, error) {
	return resolveValue("webhook", raw)
}

// ResolveHeaders resolves a header spec list into concrete headers.
// Headers whose environment variable is unset resolve to an error rather
// than an empty value, so misconfiguration surfaces at snapshot time.
func ResolveHeaders(specs []HeaderSpec) ([]Header, error) {
	if len(specs) == 0 {
		return nil, nil
	}

	out := make([]Header, 0, len(specs))
	for _, spec := range specs {
		if spec.ValueFromEnv != "" {
			v, ok := os.LookupEnv(spec.ValueFromEnv)
			if !ok {
				return nil, fmt.Errorf("registry: header %q: environment variable %q is not set", spec.Name, spec.ValueFromEnv)
			}
			out = append(out, Header{Name: spec.Name, Value: v})
			continue
		}

		v, err := resolveValue("header "+spec.Name, spec.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, Header{Name: spec.Name, Value: v})
	}
	return out, nil
}

func resolveValue(what, raw string) (string, error) {
	if !strings.HasPrefix(raw, envPrefix) {
		return raw, nil
	}

	name := strings.TrimPrefix(raw, envPrefix)
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("registry: %s: environment variable %q is not set", what, name)
	}
	return v, nil
}
