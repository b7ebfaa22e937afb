package balances

import (
	"testing"

	"ledgercore/testutil"
)

func TestRegistryStaysOnKeyValueAbstraction(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.BackendImportForbidden, "modules read and write through domain.KVReader and domain.Transaction")
}
