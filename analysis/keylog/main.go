// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package main implements a static analyzer that detects potential key material in logs or errors.
//
// Every argument passed to a fmt, log, slog or util.Logger call is searched
// for identifiers that name secrets (passwords, seeds, private keys). Those
// values must never be formatted into output.
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
	"regexp"
	"strings"
)

var secretName = regexp.MustCompile(`(?i)(password|passphrase|privkey|privatekey|secretkey|seed|plaintext|authkey)`)

// Names that match secretName but only describe a secret.
var safeName = regexp.MustCompile(`(?i)(len|size|bytes$|count|path|file|salt|required|prompt|hex$|err$)`)

// Output functions by package selector. An empty set means every function.
var outputCalls = map[string]map[string]bool{
	"fmt": {
		"Print": true, "Printf": true, "Println": true,
		"Sprint": true, "Sprintf": true, "Sprintln": true,
		"Fprint": true, "Fprintf": true, "Fprintln": true,
		"Errorf": true,
	},
	"log":    nil,
	"slog":   nil,
	"Logger": nil, // util.Logger.Info(...)
	"errors": {"New": true},
}

// Files that intentionally show secret-derived values to the user.
var exemptFiles = map[string]string{
	"cmd/apbridge/address.go": "address --auth-key prints the login proof on request",
}

type finding struct {
	pos   token.Position
	ident string
	call  string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: keylog <repo-root>")
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

// run scans every non-test Go file under root and writes a report to w.
func run(root string, w io.Writer) (int, error) {
	fset := token.NewFileSet()
	var findings []finding
	var filesChecked int

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			switch d.Name() {
			case "vendor", ".git", "node_modules", "analysis", "testdata":
				return filepath.SkipDir
			}
			if strings.HasPrefix(d.Name(), "_") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		if _, exempt := exemptFiles[filepath.ToSlash(rel)]; exempt {
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
		return 0, fmt.Errorf("walking %s: %w", root, err)
	}

	fmt.Fprintf(w, "Key Logging Analysis\n")
	fmt.Fprintf(w, "====================\n")
	fmt.Fprintf(w, "Files checked: %d\n\n", filesChecked)

	if len(findings) == 0 {
		fmt.Fprintln(w, "No issues found.")
		return 0, nil
	}
	fmt.Fprintf(w, "Potential issues: %d\n\n", len(findings))
	for _, f := range findings {
		fmt.Fprintf(w, "%s\n", f.pos)
		fmt.Fprintf(w, "  Call: %s\n", f.call)
		fmt.Fprintf(w, "  Issue: %s may carry key material into output\n\n", f.ident)
	}
	return len(findings), nil
}

func checkFile(fset *token.FileSet, f *ast.File) []finding {
	var findings []finding
	ast.Inspect(f, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		name, ok := outputCall(call.Fun)
		if !ok {
			return true
		}
		for _, arg := range call.Args {
			if id := secretIdent(arg); id != nil {
				findings = append(findings, finding{
					pos:   fset.Position(id.Pos()),
					ident: id.Name,
					call:  name,
				})
			}
		}
		return true
	})
	return findings
}

// outputCall reports whether fun is a formatting or logging function.
func outputCall(fun ast.Expr) (string, bool) {
	sel, ok := fun.(*ast.SelectorExpr)
	if !ok {
		return "", false
	}
	var recv string
	switch x := sel.X.(type) {
	case *ast.Ident:
		recv = x.Name
	case *ast.SelectorExpr:
		recv = x.Sel.Name
	default:
		return "", false
	}
	funcs, known := outputCalls[recv]
	if !known || (funcs != nil && !funcs[sel.Sel.Name]) {
		return "", false
	}
	return recv + "." + sel.Sel.Name, true
}

// secretIdent finds an identifier naming a secret inside expr. Arguments to
// len and cap are ignored.
func secretIdent(expr ast.Expr) *ast.Ident {
	var found *ast.Ident
	ast.Inspect(expr, func(n ast.Node) bool {
		if found != nil {
			return false
		}
		switch n := n.(type) {
		case *ast.CallExpr:
			if id, ok := n.Fun.(*ast.Ident); ok && (id.Name == "len" || id.Name == "cap") {
				return false
			}
		case *ast.BasicLit:
			return false
		case *ast.Ident:
			if secretName.MatchString(n.Name) && !safeName.MatchString(n.Name) {
				found = n
			}
		}
		return true
	})
	return found
}
