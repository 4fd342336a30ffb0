package homeassistant

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// providersKey is the top-level key listing provider payloads.
const providersKey = "providers"

// verbatimKeys name payload fields whose unquoted scalars are passed on as
// written. A one-wire address is hex and may happen to be all digits, which
// YAML would otherwise turn into a number.
var verbatimKeys = map[string]bool{"address": true}

// LoadReport summarises one LoadProviders call.
type LoadReport struct {
	// Applied counts payloads accepted by their provider.
	Applied int

	// Failed counts payloads a provider rejected or that could not be encoded.
	Failed int

	// Skipped counts payloads listed under a provider nobody registered.
	Skipped int
}

// LoadProviders reads the provider config file at path and hands each
// payload to the provider registered under its key, in file order.
//
// The file may be JSON or YAML (JSON is read as YAML). Each provider key maps
// to a list; every list entry is re-encoded as JSON before it reaches the
// provider. A payload rejected by its provider is logged and skipped. Only an
// unreadable or malformed file is returned as an error.
func (r *Registry) LoadProviders(path string) (LoadReport, error) {
	var report LoadReport

	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config
	if err != nil {
		return report, fmt.Errorf("%w: reading %s: %w", ErrConfigFile, path, err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return report, fmt.Errorf("%w: parsing %s: %w", ErrConfigFile, path, err)
	}

	providers, err := providersNode(&root)
	if err != nil {
		return report, fmt.Errorf("%w: %s: %w", ErrConfigFile, path, err)
	}
	if providers == nil {
		return report, nil
	}

	logger := r.getLogger()

	// Mapping nodes alternate key, value.
	for i := 0; i+1 < len(providers.Content); i += 2 {
		name := providers.Content[i].Value
		entries := providers.Content[i+1]

		if entries.Kind != yaml.SequenceNode {
			return report, fmt.Errorf("%w: %s: %s.%s must be a list (line %d)",
				ErrConfigFile, path, providersKey, name, entries.Line)
		}

		fn, ok := r.provider(name)
		if !ok {
			logger.Warn("no provider registered, skipping entries",
				"provider", name,
				"entries", len(entries.Content),
			)
			report.Skipped += len(entries.Content)
			continue
		}

		for _, entry := range entries.Content {
			payload, err := nodeToJSON(entry)
			if err == nil {
				err = fn(payload)
			}
			if err != nil {
				logger.Warn("provider rejected config entry",
					"provider", name,
					"line", entry.Line,
					"error", err,
				)
				report.Failed++
				continue
			}
			report.Applied++
		}
	}

	logger.Info("provider config loaded",
		"path", path,
		"applied", report.Applied,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)
	return report, nil
}

// providersNode returns the mapping under the top-level providers key, or
// nil when the file has none.
func providersNode(root *yaml.Node) (*yaml.Node, error) {
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("top level must be a mapping (line %d)", doc.Line)
	}

	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != providersKey {
			continue
		}
		v := doc.Content[i+1]
		if v.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%s must be a mapping (line %d)", providersKey, v.Line)
		}
		return v, nil
	}
	return nil, nil
}

// nodeToJSON re-encodes a YAML node as JSON.
func nodeToJSON(n *yaml.Node) (json.RawMessage, error) {
	keepVerbatim(n)

	var v any
	if err := n.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding entry: %w", err)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding entry: %w", err)
	}
	return b, nil
}

// keepVerbatim retags numeric scalars under verbatimKeys as strings, so
// `address: 1020304050607080` keeps its digits. Quoted values and sequences
// are left alone.
func keepVerbatim(n *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			v := n.Content[i+1]
			if verbatimKeys[n.Content[i].Value] && v.Kind == yaml.ScalarNode && v.Style == 0 &&
				(v.Tag == "!!int" || v.Tag == "!!float") {
				v.Tag = "!!str"
			}
		}
	}
	for _, c := range n.Content {
		keepVerbatim(c)
	}
}
