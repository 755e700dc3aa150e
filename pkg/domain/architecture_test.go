package domain_test

import (
	"testing"

	"shelfcore/testutil"
)

// The domain package is shared by every layer, so it must not pull any of them in.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain must stay free of implementation packages")
}

func TestDomainHasNoModuleDependencies(t *testing.T) {
	testutil.AssertNoTransitiveDependency(t, ".", testutil.ModuleExcept("pkg/domain"), "domain is the bottom layer")
}
