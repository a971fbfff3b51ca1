package framework

import (
	"strings"
	"testing"

	"github.com/c360studio/nimbusd/internal/jobmodel"
)

func astroFiles() []jobmodel.GeneratedFile {
	return []jobmodel.GeneratedFile{
		{Path: "package.json", Content: `{"name": "app", "dependencies": {"astro": "^4.0.0"}}`},
		{Path: "astro.config.mjs", Content: "export default {}"},
		{Path: "src/pages/index.astro", Content: "<h1>hi</h1>"},
	}
}

func TestResolveFramework_DetectsAstro(t *testing.T) {
	r := NewRegistry()
	res := r.ResolveFramework(astroFiles(), nil)
	if res.Framework.ID != "astro" {
		t.Fatalf("ResolveFramework() framework = %q, want astro", res.Framework.ID)
	}
	if res.Target != res.Framework.DefaultTarget {
		t.Fatalf("ResolveFramework() target = %q, want default %q", res.Target, res.Framework.DefaultTarget)
	}
}

func TestResolveFramework_NoMatchFallsBackToStatic(t *testing.T) {
	r := NewRegistry()
	plain := []jobmodel.GeneratedFile{{Path: "index.html", Content: "<h1>hi</h1>"}}
	res := r.ResolveFramework(plain, nil)
	if res.Framework.ID != "" {
		t.Fatalf("expected no framework match, got %q", res.Framework.ID)
	}
	if res.Target != "static" {
		t.Fatalf("ResolveFramework() target = %q, want static", res.Target)
	}
}

func TestResolveFramework_ExplicitConfigWins(t *testing.T) {
	r := NewRegistry()
	explicit := &jobmodel.NimbusConfig{Framework: "next", Target: "workers"}
	// Files look like astro, but the explicit config should still win.
	res := r.ResolveFramework(astroFiles(), explicit)
	if res.Framework.ID != "next" {
		t.Fatalf("explicit config should win, got %q", res.Framework.ID)
	}
}

func TestNormalize_IdempotentOnOwnOutput(t *testing.T) {
	r := NewRegistry()
	files := astroFiles()
	res := r.ResolveFramework(files, nil)

	once, cfg1 := Normalize(files, res)
	twice, cfg2 := Normalize(once, res)

	if len(once) != len(twice) {
		t.Fatalf("Normalize() changed file count on second pass: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Path != twice[i].Path || once[i].Content != twice[i].Content {
			t.Fatalf("Normalize() is not idempotent at file %q", once[i].Path)
		}
	}
	if cfg1 != cfg2 {
		t.Fatalf("Normalize() produced different configs across passes: %+v vs %+v", cfg1, cfg2)
	}
}

func TestNormalize_AstroWorkersAddsCloudflareAdapterDependency(t *testing.T) {
	r := NewRegistry()
	files := astroFiles()
	explicit := &jobmodel.NimbusConfig{Framework: "astro", Target: "workers"}
	res := r.ResolveFramework(files, explicit)

	out, cfg := Normalize(files, res)

	if cfg.Target != "workers" {
		t.Fatalf("Normalize() target = %q, want workers", cfg.Target)
	}

	pkg, ok := findFile(out, "package.json")
	if !ok {
		t.Fatal("Normalize() dropped package.json")
	}
	if !strings.Contains(pkg.Content, "@astrojs/cloudflare") {
		t.Fatalf("package.json missing @astrojs/cloudflare dependency: %s", pkg.Content)
	}
	if !strings.Contains(pkg.Content, `"astro"`) {
		t.Fatalf("package.json missing base astro dependency: %s", pkg.Content)
	}
}

func TestNormalize_AstroStaticDoesNotAddCloudflareAdapter(t *testing.T) {
	r := NewRegistry()
	files := astroFiles()
	res := r.ResolveFramework(files, nil)

	out, cfg := Normalize(files, res)

	if cfg.Target != "static" {
		t.Fatalf("Normalize() target = %q, want static", cfg.Target)
	}
	pkg, ok := findFile(out, "package.json")
	if !ok {
		t.Fatal("Normalize() dropped package.json")
	}
	if strings.Contains(pkg.Content, "@astrojs/cloudflare") {
		t.Fatalf("static target should not gain the workers-only adapter dependency: %s", pkg.Content)
	}
}

func TestParseNimbusConfig_MissingReturnsNil(t *testing.T) {
	if cfg := ParseNimbusConfig(nil); cfg != nil {
		t.Fatalf("ParseNimbusConfig() = %+v, want nil for missing file", cfg)
	}
}

func TestSynthesizePromptRules_StaticHintPicksStaticTarget(t *testing.T) {
	r := NewRegistry()
	rules := r.SynthesizePromptRules("build a static site (ssg) with astro")
	if rules == "" {
		t.Fatal("SynthesizePromptRules() returned empty string")
	}
	if !strings.Contains(rules, "Astro static site") {
		t.Fatalf("SynthesizePromptRules() = %q, want the astro static-target rule", rules)
	}
}
