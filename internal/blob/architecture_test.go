package blob

import (
	"testing"

	"ledgercore/testutil"
)

// Snapshot archives open backends through Open; only this package wires the
// concrete stores under internal/infra/blob.
func TestArchiveReachesBackendsThroughOpen(t *testing.T) {
	testutil.AssertNoDirectImports(t, "../archive", testutil.BlobInfraImportForbidden, "archives use blob.Open and blob.Store")
}

func TestBlobContractStaysBackendFree(t *testing.T) {
	testutil.AssertNoDirectImports(t, "core", testutil.BackendImportForbidden, "blob/core only declares the store contract")
}

func TestBlobBackendsStoreOpaqueBytes(t *testing.T) {
	testutil.AssertNoDirectImportsTree(t, "../infra/blob", testutil.LedgerImportForbidden, "backends never decode snapshot archives")
}

func TestGuardPredicatesMatchBlobLayout(t *testing.T) {
	for path, want := range map[string]bool{
		"ledgercore/internal/infra/blob":        true,
		"ledgercore/internal/infra/blob/s3":     true,
		"ledgercore/internal/blob":              false,
		"ledgercore/internal/infra/persistence": false,
	} {
		if got := testutil.BlobInfraImportForbidden(path); got != want {
			t.Fatalf("BlobInfraImportForbidden(%q) = %v", path, got)
		}
	}
	if !testutil.LedgerImportForbidden("ledgercore/internal/archive") || testutil.LedgerImportForbidden("ledgercore/internal/blob/core") {
		t.Fatalf("LedgerImportForbidden misclassifies the archive boundary")
	}
}
