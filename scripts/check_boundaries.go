package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Import rules for contexts/<context>/<service>/<layer>/...
//
//	domain       stdlib, own domain, value-type libraries
//	application  stdlib, own application/domain/ports
//	any layer    never another service, never txengine/internal
//
// Usage: go run ./scripts/check_boundaries.go [root]

const modulePath = "txengine"

var domainValueLibraries = []string{
	"github.com/shopspring/decimal",
}

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

func main() {
	root := "contexts"
	if len(os.Args) > 1 {
		root = os.Args[1]
	}
	violations, err := collectViolations(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "walk %s: %v\n", root, err)
		os.Exit(2)
	}
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File != violations[j].File {
			return violations[i].File < violations[j].File
		}
		if violations[i].Line != violations[j].Line {
			return violations[i].Line < violations[j].Line
		}
		return violations[i].Import < violations[j].Import
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func collectViolations(root string) ([]violation, error) {
	var violations []violation
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		rel, err := filepath.Rel(filepath.Dir(root), path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 4 {
			return nil
		}
		servicePrefix := strings.Join([]string{modulePath, parts[0], parts[1], parts[2]}, "/")
		layer := parts[3]

		violations = append(violations, checkFile(path, filepath.ToSlash(path), layer, servicePrefix)...)
		return nil
	})
	return violations, err
}

func checkFile(path string, display string, layer string, servicePrefix string) []violation {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: display, Line: 1, Rule: "file must parse"}}
	}

	var violations []violation
	report := func(line int, importPath string, rule string) {
		violations = append(violations, violation{File: display, Line: line, Import: importPath, Rule: rule})
	}

	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		line := fset.Position(imp.Pos()).Line

		if hasPrefix(importPath, modulePath+"/contexts") && !hasPrefix(importPath, servicePrefix) {
			report(line, importPath, "services must not import each other")
		}
		if hasPrefix(importPath, modulePath+"/internal") {
			report(line, importPath, "services must not import process infrastructure")
		}

		switch layer {
		case "domain":
			if !isStdlib(importPath) &&
				!hasPrefix(importPath, servicePrefix+"/domain") &&
				!isAllowed(importPath, domainValueLibraries) {
				report(line, importPath, "domain import is outside explicit allowlist")
			}
		case "application":
			if strings.Contains(importPath, "/adapters") {
				report(line, importPath, "application must not import adapters")
			}
			allowed := []string{
				servicePrefix + "/application",
				servicePrefix + "/domain",
				servicePrefix + "/ports",
			}
			if !isStdlib(importPath) && !isAllowed(importPath, allowed) {
				report(line, importPath, "application import is outside explicit allowlist")
			}
		}
	}
	return violations
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isAllowed(importPath string, allowedPrefixes []string) bool {
	for _, p := range allowedPrefixes {
		if hasPrefix(importPath, p) {
			return true
		}
	}
	return false
}

func isStdlib(importPath string) bool {
	if hasPrefix(importPath, modulePath) {
		return false
	}
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}
