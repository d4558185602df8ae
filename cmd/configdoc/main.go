// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// configdoc generates markdown documentation from Go struct tags.
// Usage: go run ./cmd/configdoc > doc/CONFIG_REFERENCE.md
package main

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/aplane-algo/apbridge/internal/util"
)

// EnvVar represents an environment variable configuration
type EnvVar struct {
	Name        string
	Description string
	UsedBy      string
}

var envVars = []EnvVar{
	{"APBRIDGE_DATA", "Data directory for apbridge (config, vault, token)", "apbridge"},
	{"APBRIDGE_DEBUG", "Set to any value to enable debug logging", "apbridge, apverifyd"},
	{"APVERIFY_DATA", "Data directory for apverifyd (config, ledger, audit log)", "apverifyd"},
	{"APVERIFY_LISTEN", "Overrides `listen`", "apverifyd"},
	{"APVERIFY_LEDGER", "Overrides `ledger.backend`", "apverifyd"},
	{"APVERIFY_REDIS_ADDR", "Overrides `ledger.redis_addr`", "apverifyd"},
	{"APVERIFY_REDIS_PASSWORD", "Overrides `ledger.redis_password`", "apverifyd"},
	{"APVERIFY_RATE_LIMIT", "Overrides `rate_limit`", "apverifyd"},
}

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--help" || os.Args[1] == "-h") {
		fmt.Println("Usage: go run ./cmd/configdoc > doc/CONFIG_REFERENCE.md")
		fmt.Println()
		fmt.Println("Generates markdown documentation from Go struct tags.")
		return
	}
	writeReference(os.Stdout)
}

func writeReference(w io.Writer) {
	fmt.Fprintln(w, "# Configuration Reference")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Auto-generated from Go struct tags. Do not edit manually.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "---")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## apbridge Configuration")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "File: `config.yaml` in the apbridge data directory (`-d`, `APBRIDGE_DATA` or `~/.apbridge`)")
	fmt.Fprintln(w)
	writeStructTable(w, reflect.TypeOf(util.Config{}))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## apverifyd Configuration")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "File: `config.yaml` in the apverifyd data directory (`-d` or `APVERIFY_DATA`). A `.env` file beside it is loaded without overriding variables already set.")
	fmt.Fprintln(w)
	writeStructTable(w, reflect.TypeOf(util.VerifierConfig{}))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Environment Variables")
	fmt.Fprintln(w)
	writeEnvVars(w)
}

func writeStructTable(w io.Writer, t reflect.Type) {
	fmt.Fprintln(w, "| Field | Type | Default | Description |")
	fmt.Fprintln(w, "|-------|------|---------|-------------|")
	writeFields(w, t, "")
}

func writeFields(w io.Writer, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		tag := field.Tag.Get("yaml")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if prefix != "" {
			name = prefix + "." + name
		}

		desc := field.Tag.Get("description")

		// Nested blocks get a row of their own, then one row per member
		ft := field.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct {
			if desc == "" {
				desc = "(nested config block)"
			}
			fmt.Fprintf(w, "| `%s` | object | (none) | %s |\n", name, desc)
			writeFields(w, ft, name)
			continue
		}

		if desc == "" {
			desc = "(no description)"
		}
		def := field.Tag.Get("default")
		switch def {
		case "":
			def = "(none)"
		case `""`:
			def = "(empty string)"
		}
		fmt.Fprintf(w, "| `%s` | %s | `%s` | %s |\n", name, formatType(field.Type), def, desc)
	}
}

func formatType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "int"
	case reflect.Float32, reflect.Float64:
		return "float"
	case reflect.Bool:
		return "bool"
	case reflect.Slice:
		return "[]" + formatType(t.Elem())
	case reflect.Map:
		return "map[" + formatType(t.Key()) + "]" + formatType(t.Elem())
	case reflect.Ptr:
		return "*" + formatType(t.Elem())
	default:
		return t.String()
	}
}

func writeEnvVars(w io.Writer) {
	fmt.Fprintln(w, "| Variable | Description | Used By |")
	fmt.Fprintln(w, "|----------|-------------|---------|")
	for _, env := range envVars {
		fmt.Fprintf(w, "| `%s` | %s | %s |\n", env.Name, env.Description, env.UsedBy)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "### Override Precedence")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "For apverifyd settings:")
	fmt.Fprintln(w, "1. `APVERIFY_*` environment variables (highest priority)")
	fmt.Fprintln(w, "2. `.env` in the data directory")
	fmt.Fprintln(w, "3. `config.yaml`")
	fmt.Fprintln(w, "4. Built-in defaults")
}
