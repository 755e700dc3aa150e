package blob_test

import (
	"sort"
	"testing"

	"golang.org/x/tools/go/packages"

	"shelfcore/testutil"
)

// Infra drivers are reached through one facade each: blob drivers through
// internal/blob, catalog stores through internal/core.
func TestInfraPackagesHaveOneEntryPoint(t *testing.T) {
	rules := []struct {
		infra   func(string) bool
		allowed func(string) bool
		reason  string
	}{
		{testutil.Packages("internal/infra/blob"), testutil.Packages("internal/blob", "internal/infra/blob"), "use blob.Store"},
		{testutil.Packages("internal/infra/persistence"), testutil.Packages("internal/core", "internal/infra/persistence"), "use core.OpenCatalog"},
	}

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, testutil.Module+"/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	seen := make(map[string]struct{})
	for _, pkg := range pkgs {
		for _, r := range rules {
			if r.allowed(pkg.PkgPath) {
				continue
			}
			for imp := range pkg.Imports {
				if r.infra(imp) {
					seen[pkg.PkgPath+" imports "+imp+" ("+r.reason+")"] = struct{}{}
				}
			}
		}
	}
	if len(seen) > 0 {
		viols := make([]string, 0, len(seen))
		for v := range seen {
			viols = append(viols, v)
		}
		sort.Strings(viols)
		for _, v := range viols {
			t.Errorf("forbidden infra import: %s", v)
		}
		t.Fatalf("found %d forbidden infra imports", len(viols))
	}
}
