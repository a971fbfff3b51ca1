package framework

import (
	"github.com/c360studio/nimbusd/internal/jobmodel"
)

func astroFramework() Framework {
	return Framework{
		ID:               "astro",
		DefaultTarget:    "static",
		SupportedTargets: []string{"static", "workers"},
		AddedDependencies: map[string]string{
			"astro": "latest",
		},
		AddedDevDependencies: map[string]string{},
		AddedDependenciesByTarget: map[string]map[string]string{
			"workers": {"@astrojs/cloudflare": "latest"},
		},
		OutputsByTarget: map[string]Output{
			"static":  {AssetsDir: "dist"},
			"workers": {AssetsDir: "dist", WorkerEntry: "dist/_worker.js/index.js"},
		},
		Detector: func(files []jobmodel.GeneratedFile, pkgJSON map[string]any) bool {
			if hasDep(pkgJSON, "astro") {
				return true
			}
			return hasFile(files, "astro.config.mjs") || hasFile(files, "astro.config.ts")
		},
		FileNormalizer: normalizeAstro,
		PromptRulesByTarget: map[string]string{
			"static":  "Build an Astro static site. Do not add a server adapter.",
			"workers": "Build an Astro site with output:'server' and the @astrojs/cloudflare adapter, suitable for edge worker deployment.",
		},
		PromptKeywords: []string{"astro"},
	}
}

// normalizeAstro ensures an SSR adapter and output mode for the workers
// target, replacing any present astro.config with a canonical one; for
// static it leaves an existing config alone unless absent.
func normalizeAstro(files []jobmodel.GeneratedFile, target string) []jobmodel.GeneratedFile {
	if target != "workers" {
		if hasFile(files, "astro.config.mjs") || hasFile(files, "astro.config.ts") {
			return files
		}
		return append(files, jobmodel.GeneratedFile{
			Path:    "astro.config.mjs",
			Content: "import { defineConfig } from 'astro/config';\n\nexport default defineConfig({});\n",
		})
	}

	const cfg = `import { defineConfig } from 'astro/config';
import cloudflare from '@astrojs/cloudflare';

export default defineConfig({
  output: 'server',
  adapter: cloudflare(),
});
`
	out := make([]jobmodel.GeneratedFile, 0, len(files)+1)
	replaced := false
	for _, f := range files {
		if f.Path == "astro.config.mjs" || f.Path == "astro.config.ts" {
			out = append(out, jobmodel.GeneratedFile{Path: "astro.config.mjs", Content: cfg})
			replaced = true
			continue
		}
		out = append(out, f)
	}
	if !replaced {
		out = append(out, jobmodel.GeneratedFile{Path: "astro.config.mjs", Content: cfg})
	}
	return out
}

// WorkersAssetsIgnoreEntry is the line the sandbox driver ensures exists in
// <assetsDir>/.assetsignore for the workers target, so the assets layer does
// not shadow the worker entry.
const WorkersAssetsIgnoreEntry = "_worker.js"
