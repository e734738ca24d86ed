package blob

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestInfraImportsStayBehindFacades ensures infra implementations are reached
// only through their facade packages: blob backends through internal/blob and
// persistence backends through internal/core.
func TestInfraImportsStayBehindFacades(t *testing.T) {
	const module = "github.com/BKHilton/Ember"
	rules := []struct {
		infra   string
		allowed []string
	}{
		{infra: module + "/internal/infra/blob", allowed: []string{module + "/internal/blob"}},
		{infra: module + "/internal/infra/persistence", allowed: []string{module + "/internal/core"}},
	}

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, module+"/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	seen := make(map[string]struct{})
	for _, pkg := range pkgs {
		path := strings.TrimSuffix(pkg.PkgPath, ".test")
		for _, rule := range rules {
			if hasPrefix(path, rule.infra) || anyPrefix(path, rule.allowed) {
				continue
			}
			for importPath := range pkg.Imports {
				if hasPrefix(importPath, rule.infra) {
					seen[path+": "+importPath] = struct{}{}
				}
			}
		}
	}

	if len(seen) > 0 {
		violations := make([]string, 0, len(seen))
		for v := range seen {
			violations = append(violations, v)
		}
		sort.Strings(violations)
		for _, v := range violations {
			t.Errorf("forbidden import of infra package: %s", v)
		}
		t.Fatalf("found %d forbidden infra imports", len(violations))
	}
}

func anyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if hasPrefix(path, p) {
			return true
		}
	}
	return false
}

func hasPrefix(importPath, prefix string) bool {
	return importPath == prefix || strings.HasPrefix(importPath, prefix+"/")
}
