package compressed_tensors

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrNoMatchedTarget       = errors.New("no matched target")
	ErrInconsistentFusedSkip = errors.New("detected some but not all shards of a fused layer are quantized")
)

// Module is the minimal view of a model sub-module this package needs for
// target matching, usually implemented by LinearLayer and FusedMoELayer.
type Module interface {
	// ModuleType returns the class-like name of the module, e.g. "Linear".
	ModuleType() string
}

// FindMatchedTarget finds which target the given layer conforms to.
//
// Resolution order:
//  1. a fused/packed layer name resolves to its first constituent's name;
//  2. exact match of the layer name against the targets;
//  3. regexp match against the "re:"-prefixed targets;
//  4. module-type match.
//
// The targets are tried in the given order within each phase.
// Returns ErrNoMatchedTarget if no target applies.
func FindMatchedTarget(layerName string, module Module, targets []string, fusedMapping map[string][]string) (string, error) {
	layerName = resolveFusedAlias(layerName, fusedMapping)

	for _, t := range targets {
		if !strings.HasPrefix(t, "re:") && t == layerName {
			return t, nil
		}
	}

	for _, t := range targets {
		p, ok := strings.CutPrefix(t, "re:")
		if !ok {
			continue
		}
		r, err := regexp.Compile(p)
		if err != nil {
			return "", fmt.Errorf("compile target %q: %w", t, err)
		}
		if r.MatchString(layerName) {
			return t, nil
		}
	}

	if module != nil {
		mt := strings.ToLower(module.ModuleType())
		for _, t := range targets {
			if strings.HasPrefix(t, "re:") {
				continue
			}
			if t != "" && strings.Contains(mt, strings.ToLower(t)) {
				return t, nil
			}
		}
	}

	return "", fmt.Errorf("%w: layer %q", ErrNoMatchedTarget, layerName)
}

// ShouldIgnoreLayer reports whether the layer is skipped for quantization.
//
// A fused layer is skipped only when all of its constituents are skipped;
// constituents disagreeing on skip status is a configuration error.
func ShouldIgnoreLayer(layerName string, ignore []string, fusedMapping map[string][]string) (bool, error) {
	prefix, proj := splitLastComponent(layerName)

	if shards, ok := fusedMapping[proj]; ok && len(shards) > 0 {
		skipped := 0
		for _, s := range shards {
			if matchesAny(prefix+s, ignore) {
				skipped++
			}
		}
		if skipped != 0 && skipped != len(shards) {
			return false, fmt.Errorf("%w: layer %q", ErrInconsistentFusedSkip, layerName)
		}
		return skipped == len(shards), nil
	}

	return matchesAny(layerName, ignore), nil
}

// resolveFusedAlias rewrites a fused layer name to its first constituent's
// name, so a fused layer inherits its first component's scheme.
func resolveFusedAlias(layerName string, fusedMapping map[string][]string) string {
	prefix, proj := splitLastComponent(layerName)
	if shards, ok := fusedMapping[proj]; ok && len(shards) > 0 {
		return prefix + shards[0]
	}
	return layerName
}

func splitLastComponent(name string) (prefix, last string) {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i+1], name[i+1:]
	}
	return "", name
}

func matchesAny(layerName string, targets []string) bool {
	for _, t := range targets {
		if p, ok := strings.CutPrefix(t, "re:"); ok {
			if r, err := regexp.Compile(p); err == nil && r.MatchString(layerName) {
				return true
			}
			continue
		}
		if t == layerName {
			return true
		}
	}
	return false
}
