// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package main implements a static analyzer that detects insecure random number usage.
//
// Packages that produce nonces, salts or key material must draw from
// crypto/rand. Any import of math/rand in them is reported, whatever name it
// is imported under.
package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Directories that should never use math/rand
var criticalDirs = []string{
	"internal/crypto",
	"internal/vault",
	"internal/keyderive",
	"internal/signing",
	"internal/request",
	"internal/session",
	"internal/verifier",
}

var insecureImports = map[string]bool{
	"math/rand":    true,
	"math/rand/v2": true,
}

type finding struct {
	pos  token.Position
	path string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: insecurerand <repo-root>")
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

	for _, dir := range criticalDirs {
		dirPath := filepath.Join(root, dir)
		if _, err := os.Stat(dirPath); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			filesChecked++
			f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
			if err != nil {
				return err
			}
			for _, imp := range f.Imports {
				p, _ := strconv.Unquote(imp.Path.Value)
				if insecureImports[p] {
					findings = append(findings, finding{pos: fset.Position(imp.Pos()), path: p})
				}
			}
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("walking %s: %w", dir, err)
		}
	}

	fmt.Fprintf(w, "Insecure Random Analysis\n")
	fmt.Fprintf(w, "========================\n")
	fmt.Fprintf(w, "Files checked: %d\n\n", filesChecked)

	if len(findings) == 0 {
		fmt.Fprintln(w, "No issues found.")
		return 0, nil
	}
	fmt.Fprintf(w, "Potential issues: %d\n\n", len(findings))
	for _, f := range findings {
		fmt.Fprintf(w, "%s\n", f.pos)
		fmt.Fprintf(w, "  Issue: %s imported in security-critical package, use crypto/rand\n\n", f.path)
	}
	return len(findings), nil
}
