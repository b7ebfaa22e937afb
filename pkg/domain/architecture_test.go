package domain

import (
	"testing"

	"ledgercore/testutil"
)

// TestDomainDoesNotImportInternal keeps the domain layer free of backend and
// module implementations so every package can depend on it.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain is imported by every layer")
	testutil.AssertNoDirectImports(t, ".", testutil.ThirdPartyImportForbidden, "domain stays on the standard library")
}
