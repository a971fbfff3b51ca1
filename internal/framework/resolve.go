package framework

import (
	"encoding/json"
	"strings"

	"github.com/c360studio/nimbusd/internal/jobmodel"
)

// Resolution is the outcome of resolving a project's framework and target.
type Resolution struct {
	Framework Framework // zero value (ID == "") means no framework (static site)
	Target    string
}

// ResolveFramework implements the registry's resolution order: an explicit
// nimbus.config.json framework wins; otherwise the first framework whose
// Detector matches, tested in registry order; otherwise no framework
// (plain static site).
func (r *Registry) ResolveFramework(files []jobmodel.GeneratedFile, explicit *jobmodel.NimbusConfig) Resolution {
	pkgJSON := detectPackageJSON(files)

	if explicit != nil && explicit.Framework != "" {
		if f, ok := r.Lookup(explicit.Framework); ok {
			return Resolution{Framework: f, Target: resolveTarget(f, explicit, "")}
		}
	}

	for _, f := range r.frameworks {
		if f.Detector != nil && f.Detector(files, pkgJSON) {
			target := ""
			if explicit != nil {
				target = explicit.Target
			}
			return Resolution{Framework: f, Target: resolveTarget(f, explicit, target)}
		}
	}

	return Resolution{Framework: Framework{}, Target: "static"}
}

// resolveTarget implements the target resolution order: explicit wins if
// supported; otherwise the framework's default.
func resolveTarget(f Framework, explicit *jobmodel.NimbusConfig, promptHint string) string {
	if explicit != nil && explicit.Target != "" && f.SupportsTarget(explicit.Target) {
		return explicit.Target
	}
	if promptHint != "" && f.SupportsTarget(promptHint) {
		return promptHint
	}
	return f.DefaultTarget
}

// Normalize merges framework dependencies into package.json, invokes the
// framework's file normalizer, and writes the canonical nimbus.config.json.
// A missing/unparseable package.json skips dependency injection entirely.
// Normalization is idempotent: running it again on its own output produces
// byte-identical files.
func Normalize(files []jobmodel.GeneratedFile, res Resolution) ([]jobmodel.GeneratedFile, jobmodel.NimbusConfig) {
	out := make([]jobmodel.GeneratedFile, len(files))
	copy(out, files)

	if res.Framework.ID != "" {
		out = mergePackageJSON(out, res.Framework, res.Target)
		if res.Framework.FileNormalizer != nil {
			out = res.Framework.FileNormalizer(out, res.Target)
		}
	}

	cfg := jobmodel.NimbusConfig{Framework: res.Framework.ID, Target: res.Target}
	if output, ok := res.Framework.OutputsByTarget[res.Target]; ok {
		cfg.AssetsDir = output.AssetsDir
		cfg.WorkerEntry = output.WorkerEntry
	}

	out = writeNimbusConfig(out, cfg)
	return out, cfg
}

func mergePackageJSON(files []jobmodel.GeneratedFile, f Framework, target string) []jobmodel.GeneratedFile {
	idx := -1
	for i, file := range files {
		if file.Path == "package.json" {
			idx = i
			break
		}
	}
	if idx == -1 {
		return files
	}

	var pkg map[string]any
	if err := json.Unmarshal([]byte(files[idx].Content), &pkg); err != nil {
		return files
	}

	mergeDeps(pkg, "dependencies", f.AddedDependencies)
	mergeDeps(pkg, "dependencies", f.AddedDependenciesByTarget[target])
	mergeDeps(pkg, "devDependencies", f.AddedDevDependencies)

	encoded, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return files
	}
	files[idx].Content = string(encoded) + "\n"
	return files
}

func mergeDeps(pkg map[string]any, key string, added map[string]string) {
	if len(added) == 0 {
		return
	}
	deps, _ := pkg[key].(map[string]any)
	if deps == nil {
		deps = map[string]any{}
	}
	for name, version := range added {
		if _, exists := deps[name]; !exists {
			deps[name] = version
		}
	}
	pkg[key] = deps
}

func writeNimbusConfig(files []jobmodel.GeneratedFile, cfg jobmodel.NimbusConfig) []jobmodel.GeneratedFile {
	encoded, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return files
	}
	content := string(encoded) + "\n"

	for i, f := range files {
		if f.Path == "nimbus.config.json" {
			files[i].Content = content
			return files
		}
	}
	return append(files, jobmodel.GeneratedFile{Path: "nimbus.config.json", Content: content})
}

// ParseNimbusConfig reads nimbus.config.json from files if present and
// parseable; a missing or unparseable file is "unspecified" (nil, no
// error) per the registry's contract.
func ParseNimbusConfig(files []jobmodel.GeneratedFile) *jobmodel.NimbusConfig {
	f, ok := findFile(files, "nimbus.config.json")
	if !ok {
		return nil
	}
	var cfg jobmodel.NimbusConfig
	if err := json.Unmarshal([]byte(f.Content), &cfg); err != nil {
		return nil
	}
	return &cfg
}

// SynthesizePromptRules scans the lower-cased prompt for framework keywords
// and SSR/static hints, returning the system-prompt fragment to feed the
// LLM client. This output has no runtime side effects beyond prompt
// construction.
func (r *Registry) SynthesizePromptRules(prompt string) string {
	lower := strings.ToLower(prompt)

	for _, f := range r.frameworks {
		matched := false
		for _, kw := range f.PromptKeywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		target := f.DefaultTarget
		if f.SupportsTarget("static") && f.SupportsTarget("workers") {
			if staticHint(lower) {
				target = "static"
			} else if ssrHint(lower) {
				target = "workers"
			}
		}

		if rule, ok := f.PromptRulesByTarget[target]; ok {
			return rule + "\n" + commonPromptRules
		}
	}

	return "Build a plain static site (HTML/CSS/JS). No framework or build step required.\n" + commonPromptRules
}

func staticHint(lower string) bool {
	for _, kw := range []string{"ssg", "prerender", "static site"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func ssrHint(lower string) bool {
	for _, kw := range []string{"ssr", "server-rendered", "full-stack"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
