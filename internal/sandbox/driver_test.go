package sandbox

import (
	"testing"

	"github.com/c360studio/nimbusd/internal/jobmodel"
)

func TestHasBuildScript_True(t *testing.T) {
	files := []jobmodel.GeneratedFile{
		{Path: "package.json", Content: `{"scripts": {"build": "vite build"}}`},
	}
	if !hasBuildScript(files) {
		t.Fatal("hasBuildScript() = false, want true")
	}
}

func TestHasBuildScript_NoScriptsField(t *testing.T) {
	files := []jobmodel.GeneratedFile{
		{Path: "package.json", Content: `{"name": "app"}`},
	}
	if hasBuildScript(files) {
		t.Fatal("hasBuildScript() = true, want false")
	}
}

func TestHasBuildScript_NoPackageJSON(t *testing.T) {
	files := []jobmodel.GeneratedFile{{Path: "index.html", Content: "<h1>hi</h1>"}}
	if hasBuildScript(files) {
		t.Fatal("hasBuildScript() = true, want false")
	}
}

func TestHasFile(t *testing.T) {
	files := []jobmodel.GeneratedFile{{Path: "a.txt", Content: "x"}}
	if !hasFile(files, "a.txt") {
		t.Fatal("hasFile() = false, want true")
	}
	if hasFile(files, "b.txt") {
		t.Fatal("hasFile() = true, want false")
	}
}
