// Package plugins hosts plugin implementation subpackages. It contains no
// production runtime code itself; this file exists so the architectural guard
// test alongside it has a package to live in.
//
// Plugins depend on the aliases exported by ledgercore/internal/core rather
// than on ledgercore/pkg/domain directly.
package plugins
