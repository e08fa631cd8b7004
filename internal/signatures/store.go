// Package signatures loads the named reference vectors the classifier matches
// against. Loading never fails: a missing or unreadable file yields the
// single fallback signature.
package signatures

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"airguard/internal/config"
	"airguard/internal/model"
)

const FallbackName = "Normal Air"

func Fallback() []model.Signature {
	return []model.Signature{{Name: FallbackName, Vector: [3]float64{0, 0, 0.1}}}
}

// Load reads path and returns its signatures in file order. Any problem is
// logged as a warning and the fallback set is returned.
func Load(path string, logger *slog.Logger) []model.Signature {
	sigs, err := Parse(path)
	if err != nil {
		if logger != nil {
			logger.Warn("signature file unusable, using fallback", "path", path, "err", err)
		}
		return Fallback()
	}
	if logger != nil {
		names := make([]string, 0, len(sigs))
		for _, s := range sigs {
			names = append(names, s.Name)
		}
		logger.Info("signatures loaded", "path", path, "signatures", names)
	}
	return sigs
}

// Parse reads a JSON or YAML mapping of name to three-element vector.
func Parse(path string) ([]model.Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, errors.New("signature file is empty")
	}
	// decode through yaml.Node in both cases so mapping order survives;
	// JSON is a subset of YAML
	if config.LooksLikeJSON(trimmed) && !json.Valid([]byte(trimmed)) {
		return nil, errors.New("signature file is not valid json")
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(trimmed), &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New("signature file must be a mapping of name to vector")
	}
	root := doc.Content[0]
	out := make([]model.Signature, 0, len(root.Content)/2)
	seen := make(map[string]struct{}, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		var vec []float64
		if err := root.Content[i+1].Decode(&vec); err != nil {
			return nil, fmt.Errorf("signature %q: %w", name, err)
		}
		if len(vec) != 3 {
			return nil, fmt.Errorf("signature %q: want 3 values, got %d", name, len(vec))
		}
		for _, v := range vec {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("signature %q: non-finite value", name)
			}
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("signature %q defined twice", name)
		}
		seen[name] = struct{}{}
		out = append(out, model.Signature{Name: name, Vector: [3]float64{vec[0], vec[1], vec[2]}})
	}
	if len(out) == 0 {
		return nil, errors.New("signature file has no entries")
	}
	return out, nil
}
