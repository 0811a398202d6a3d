// Command kventity-gen generates kventity component bindings from struct
// tags.
//
// It reads one Go source file, finds exported structs with at least one
// field tagged `kventity:"index"`, and writes a sibling file
// <input>_kventity.go containing, per struct:
//
//   - the kventity.Component implementation (TypePath, IndexedFieldNames,
//     IndexedFields) with order-preserving encoders from package keycodec
//   - a <Type>Query helper with one equality method per indexed field and a
//     <Field>Range method for half-open range filters
//   - an init() that registers the component in the process-wide registry
//
// Structs named in -relations get a kventity.Relation implementation
// (TypePath only) instead. Structs named in -components are bound as
// components even when no field carries an index tag.
//
// Indexed fields must be string, a sized (u)int, int, uint, float32, or
// float64; anything else fails generation. The field name embedded in index
// keys is the first segment of the field's json tag when present, otherwise
// the lower-cased Go field name.
//
// Usage:
//
//	kventity-gen -src types.go [-typeprefix my::pkg] [-relations FriendRelation]
//
// Typically invoked via go:generate:
//
//	//go:generate go run github.com/MrWong99/kventity/cmd/kventity-gen -src types.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

func main() {
	os.Exit(run())
}

func run() int {
	src := flag.String("src", "", "Go source file to scan for tagged structs")
	out := flag.String("out", "", "output file (default: <src without .go>_kventity.go)")
	typePrefix := flag.String("typeprefix", "", "type-path prefix (default: the package name)")
	components := flag.String("components", "", "comma-separated struct names to bind as components even without index tags")
	relations := flag.String("relations", "", "comma-separated struct names to bind as relations")
	flag.Parse()

	if *src == "" {
		fmt.Fprintln(os.Stderr, "kventity-gen: -src is required")
		return 2
	}
	if *out == "" {
		*out = strings.TrimSuffix(*src, ".go") + "_kventity.go"
	}

	var compNames, relNames []string
	if *components != "" {
		compNames = strings.Split(*components, ",")
	}
	if *relations != "" {
		relNames = strings.Split(*relations, ",")
	}

	code, err := Generate(*src, *typePrefix, compNames, relNames)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kventity-gen: %v\n", err)
		return 1
	}
	if err := os.WriteFile(*out, code, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "kventity-gen: write %q: %v\n", *out, err)
		return 1
	}
	return 0
}
