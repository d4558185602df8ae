// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package main implements a static analyzer that checks for proper zeroing of key material.
//
// A function that touches seed or private key bytes must wipe them before it
// returns, either with crypto.ZeroBytes or by destroying the keypair or
// secure string that owns them.
package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Directories to scan (relative to repo root)
var targetDirs = []string{
	"internal/crypto",
	"internal/keyderive",
	"internal/signing",
	"internal/vault",
	"internal/session",
	"cmd/apbridge",
}

// Selectors whose use means the function holds raw key material.
var keySelectors = map[string]bool{
	"Seed":           true, // ed25519.PrivateKey.Seed()
	"NewKeyFromSeed": true,
	"PrivateKey":     true,
	"Bytes":          true, // SecureString.Bytes()
}

// Calls that wipe key material.
var zeroCalls = map[string]bool{
	"ZeroBytes":  true,
	"Destroy":    true,
	"WithSecret": true, // runs the callback against a copy it zeroes itself
}

// Functions that hand key material to their caller, who owns zeroing it.
var exemptFunctions = map[string]string{
	"newKeypair":               "returns the keypair that owns the seed",
	"decodeSeed":               "returns the seed to Derive, which zeroes it",
	"Sign":                     "key passed as parameter - caller owns lifecycle",
	"NewSecureStringFromBytes": "copies into a SecureString whose Destroy zeroes it",
}

type finding struct {
	pos      token.Position
	funcName string
	sel      string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: keyzero <repo-root>")
		os.Exit(1)
	}
	n, err := run(os.Args[1], os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if n > 0 {
		os.Exit(1)
	}
}

// run scans root and writes a report to w. It returns the number of findings.
func run(root string, w io.Writer) (int, error) {
	fset := token.NewFileSet()
	var findings []finding
	var filesChecked int

	for _, dir := range targetDirs {
		dirPath := filepath.Join(root, dir)
		if _, err := os.Stat(dirPath); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == "testdata" {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			filesChecked++
			f, err := parser.ParseFile(fset, path, nil, 0)
			if err != nil {
				return err
			}
			findings = append(findings, checkFile(fset, f)...)
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("walking %s: %w", dir, err)
		}
	}

	fmt.Fprintf(w, "Key Zeroing Analysis\n")
	fmt.Fprintf(w, "====================\n")
	fmt.Fprintf(w, "Files checked: %d\n\n", filesChecked)

	if len(findings) == 0 {
		fmt.Fprintln(w, "No issues found.")
		return 0, nil
	}
	fmt.Fprintf(w, "Potential issues: %d\n\n", len(findings))
	for _, f := range findings {
		fmt.Fprintf(w, "%s\n", f.pos)
		fmt.Fprintf(w, "  Function: %s\n", f.funcName)
		fmt.Fprintf(w, "  Issue: uses %s but never calls ZeroBytes or Destroy\n\n", f.sel)
	}
	return len(findings), nil
}

func checkFile(fset *token.FileSet, f *ast.File) []finding {
	var findings []finding
	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil {
			continue
		}
		if _, exempt := exemptFunctions[fn.Name.Name]; exempt {
			continue
		}

		var keyRef *ast.SelectorExpr
		zeroed := false
		ast.Inspect(fn.Body, func(n ast.Node) bool {
			switch n := n.(type) {
			case *ast.SelectorExpr:
				if keySelectors[n.Sel.Name] && keyRef == nil {
					keyRef = n
				}
			case *ast.CallExpr:
				if name := calleeName(n.Fun); zeroCalls[name] {
					zeroed = true
				}
			}
			return true
		})
		if keyRef != nil && !zeroed {
			findings = append(findings, finding{
				pos:      fset.Position(keyRef.Pos()),
				funcName: fn.Name.Name,
				sel:      keyRef.Sel.Name,
			})
		}
	}
	return findings
}

func calleeName(fun ast.Expr) string {
	switch fun := fun.(type) {
	case *ast.Ident:
		return fun.Name
	case *ast.SelectorExpr:
		return fun.Sel.Name
	}
	return ""
}
