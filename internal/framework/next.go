package framework

import (
	"github.com/c360studio/nimbusd/internal/jobmodel"
)

func nextFramework() Framework {
	return Framework{
		ID:               "next",
		DefaultTarget:    "workers",
		SupportedTargets: []string{"workers"},
		AddedDependencies: map[string]string{
			"next": "latest",
		},
		AddedDevDependencies: map[string]string{
			"@opennextjs/cloudflare": "latest",
		},
		OutputsByTarget: map[string]Output{
			"workers": {AssetsDir: ".open-next/assets", WorkerEntry: ".open-next/worker.js"},
		},
		Detector: func(files []jobmodel.GeneratedFile, pkgJSON map[string]any) bool {
			if hasDep(pkgJSON, "next") {
				return true
			}
			return hasFile(files, "next.config.js") || hasFile(files, "next.config.mjs") || hasFile(files, "next.config.ts")
		},
		FileNormalizer: normalizeNext,
		PromptRulesByTarget: map[string]string{
			"workers": "Build a Next.js app with output:'standalone', compatible with deployment via OpenNext on Cloudflare Workers. Use the App Router.",
		},
		PromptKeywords: []string{"next", "next.js", "nextjs"},
	}
}

// normalizeNext replaces any present Next.js config with a canonical
// standalone-output config, the shape the Next-on-workers build path
// requires before running `bunx next build`.
func normalizeNext(files []jobmodel.GeneratedFile, target string) []jobmodel.GeneratedFile {
	const cfg = `/** @type {import('next').NextConfig} */
const nextConfig = {
  output: 'standalone',
};

module.exports = nextConfig;
`
	out := make([]jobmodel.GeneratedFile, 0, len(files)+1)
	replaced := false
	for _, f := range files {
		switch f.Path {
		case "next.config.js", "next.config.mjs", "next.config.ts":
			out = append(out, jobmodel.GeneratedFile{Path: "next.config.js", Content: cfg})
			replaced = true
		default:
			out = append(out, f)
		}
	}
	if !replaced {
		out = append(out, jobmodel.GeneratedFile{Path: "next.config.js", Content: cfg})
	}
	return out
}
