// Package testutil provides reusable testing helpers for enforcing the layering
// of the ledger: registries stay on the key-value abstraction, plugins stay on
// the core aliases, and the domain package stays dependency free.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// backendPrefixes lists import paths of concrete storage engines and drivers.
var backendPrefixes = []string{
	"/internal/infra/persistence",
	"/internal/infra/blob",
	"github.com/dgraph-io/badger",
	"github.com/jackc/pgx",
	"modernc.org/sqlite",
	"database/sql",
}

// AssertNoTransitiveDependency shells out to `go list -deps` with the provided pattern
// (e.g. ./... or .) and fails the test if any dependency path satisfies the forbidden predicate.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	viols, out, err := transitiveDependencyViolations(pattern, forbidden)
	if err != nil {
		t.Fatalf("go list failed: %v\n%s", err, string(out))
	}
	failIfViolations(t, "transitive dependency", reason, viols)
}

// AssertNoDirectImports scans the non-test .go files in dir and fails if any
// import path satisfies the forbidden predicate. Subdirectories are not scanned.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	failIfViolations(t, "direct imports", reason, viols)
}

// AssertNoDirectImportsTree applies AssertNoDirectImports to root and every
// directory below it.
func AssertNoDirectImportsTree(t testing.TB, root string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	var viols []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		found, err := directImportViolations(path, forbidden)
		if err != nil {
			return err
		}
		for _, v := range found {
			viols = append(viols, v+" in "+path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	failIfViolations(t, "direct imports", reason, viols)
}

// DomainImportForbidden matches any import path that points to the domain package.
func DomainImportForbidden(path string) bool {
	return strings.HasSuffix(path, "/pkg/domain") || strings.Contains(path, "/pkg/domain@")
}

// InternalImportForbidden matches any import path containing /internal/.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// BackendImportForbidden matches storage engines, blob stores and database drivers.
func BackendImportForbidden(path string) bool {
	for _, prefix := range backendPrefixes {
		if strings.HasPrefix(path, prefix) || strings.Contains(path, prefix+"/") || strings.HasSuffix(path, prefix) {
			return true
		}
	}
	return false
}

// BlobInfraImportForbidden matches the concrete blob backends under internal/infra/blob.
func BlobInfraImportForbidden(path string) bool {
	return strings.HasSuffix(path, "/internal/infra/blob") || strings.Contains(path, "/internal/infra/blob/")
}

// LedgerImportForbidden matches the ledger runtime, its archive format and the domain package.
func LedgerImportForbidden(path string) bool {
	for _, suffix := range []string{"/internal/core", "/internal/archive", "/internal/cli"} {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return DomainImportForbidden(path)
}

// ThirdPartyImportForbidden matches any import outside the standard library.
func ThirdPartyImportForbidden(path string) bool {
	first, _, _ := strings.Cut(path, "/")
	return strings.Contains(first, ".")
}

var goListDeps = func(pattern string) ([]byte, error) {
	cmd := exec.Command("go", "list", "-deps", pattern)
	return cmd.CombinedOutput()
}

func transitiveDependencyViolations(pattern string, forbidden func(path string) bool) ([]string, []byte, error) {
	out, err := goListDeps(pattern)
	if err != nil {
		return nil, out, err
	}
	var viols []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && forbidden(line) {
			viols = append(viols, line)
		}
	}
	return viols, out, nil
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			ip, err := strconv.Unquote(imp.Path.Value)
			if err != nil {
				return nil, err
			}
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func failIfViolations(t fatalLogger, kind, reason string, viols []string) {
	if len(viols) > 0 {
		t.Fatalf("forbidden %s detected (%s):\n%s", kind, reason, strings.Join(viols, "\n"))
	}
}
