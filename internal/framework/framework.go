// Package framework implements the framework registry (C4): detecting a
// target web framework from a generated file tree, normalizing the tree to
// that framework's minimal buildable shape, and synthesizing
// framework-specific prompt rules for the LLM client.
//
// Each framework is modeled as a value, not a class, implementing the
// capability set {detect, normalizeFiles?, promptRulesByTarget?}; the
// registry is a static ordered list where priority is insertion order.
package framework

import (
	"encoding/json"
	"strings"

	"github.com/c360studio/nimbusd/internal/jobmodel"
)

// Output describes one target's build output location.
type Output struct {
	AssetsDir   string
	WorkerEntry string
}

// Framework is an immutable definition of one supported web framework.
type Framework struct {
	ID                   string
	DefaultTarget        string
	SupportedTargets     []string
	AddedDependencies    map[string]string
	AddedDevDependencies map[string]string

	// AddedDependenciesByTarget supplies extra dependencies needed only for
	// a specific target (e.g. an edge-runtime adapter package required by
	// "workers" but not "static"), merged in addition to AddedDependencies.
	AddedDependenciesByTarget map[string]map[string]string

	OutputsByTarget map[string]Output

	// Detector reports whether files/pkgJSON look like this framework.
	Detector func(files []jobmodel.GeneratedFile, pkgJSON map[string]any) bool

	// FileNormalizer rewrites/adds framework config files for the chosen
	// target. Nil means no extra normalization beyond dependency merge.
	FileNormalizer func(files []jobmodel.GeneratedFile, target string) []jobmodel.GeneratedFile

	// PromptRulesByTarget supplies the system-prompt fragment for each
	// supported target.
	PromptRulesByTarget map[string]string

	// PromptKeywords are lower-cased substrings in the user prompt that
	// select this framework during prompt synthesis.
	PromptKeywords []string
}

func (f Framework) SupportsTarget(target string) bool {
	for _, t := range f.SupportedTargets {
		if t == target {
			return true
		}
	}
	return false
}

// Registry is the static ordered list of known frameworks; priority is
// insertion order.
type Registry struct {
	frameworks []Framework
}

// NewRegistry builds the registry with the built-in framework set.
func NewRegistry() *Registry {
	return &Registry{frameworks: []Framework{astroFramework(), nextFramework()}}
}

// All returns the frameworks in priority order.
func (r *Registry) All() []Framework { return r.frameworks }

// Lookup finds a framework by id.
func (r *Registry) Lookup(id string) (Framework, bool) {
	for _, f := range r.frameworks {
		if f.ID == id {
			return f, true
		}
	}
	return Framework{}, false
}

const commonPromptRules = "Use real, published package versions or the literal string \"latest\"; never invent a package name or version."

// detectPackageJSON parses package.json from files, if present.
func detectPackageJSON(files []jobmodel.GeneratedFile) map[string]any {
	for _, f := range files {
		if f.Path == "package.json" {
			var m map[string]any
			if err := json.Unmarshal([]byte(f.Content), &m); err == nil {
				return m
			}
		}
	}
	return nil
}

func hasDep(pkgJSON map[string]any, name string) bool {
	if pkgJSON == nil {
		return false
	}
	for _, key := range []string{"dependencies", "devDependencies"} {
		deps, _ := pkgJSON[key].(map[string]any)
		if _, ok := deps[name]; ok {
			return true
		}
	}
	return false
}

func hasFile(files []jobmodel.GeneratedFile, path string) bool {
	for _, f := range files {
		if f.Path == path {
			return true
		}
	}
	return false
}

func findFile(files []jobmodel.GeneratedFile, path string) (jobmodel.GeneratedFile, bool) {
	for _, f := range files {
		if f.Path == path {
			return f, true
		}
	}
	return jobmodel.GeneratedFile{}, false
}

func strContains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}
