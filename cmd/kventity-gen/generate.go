package main

import (
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"text/template"
)

// encoderFor maps supported field types to their keycodec encoder.
var encoderFor = map[string]string{
	"string":  "keycodec.String",
	"uint8":   "keycodec.Uint8",
	"uint16":  "keycodec.Uint16",
	"uint32":  "keycodec.Uint32",
	"uint64":  "keycodec.Uint64",
	"uint":    "keycodec.Uint",
	"int8":    "keycodec.Int8",
	"int16":   "keycodec.Int16",
	"int32":   "keycodec.Int32",
	"int64":   "keycodec.Int64",
	"int":     "keycodec.Int",
	"float32": "keycodec.Float32",
	"float64": "keycodec.Float64",
}

// indexedField is one `kventity:"index"` tagged struct field.
type indexedField struct {
	GoName  string // exported Go field name
	KeyName string // name embedded in index keys
	GoType  string // field type as written
	Encoder string // keycodec function
}

// componentSpec is one struct to generate bindings for.
type componentSpec struct {
	Name     string
	TypePath string
	Fields   []indexedField
}

// relationSpec is one struct to bind as a relation payload.
type relationSpec struct {
	Name     string
	TypePath string
}

type fileSpec struct {
	Package    string
	Components []componentSpec
	Relations  []relationSpec
}

// Generate parses the Go source file at src and returns the generated
// bindings, gofmt-formatted. typePrefix defaults to the package name;
// relations names structs to bind as relation payloads; components names
// structs to bind as components even when no field carries an index tag.
func Generate(src, typePrefix string, components, relations []string) ([]byte, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, src, nil, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}

	spec := fileSpec{Package: file.Name.Name}
	if typePrefix == "" {
		typePrefix = file.Name.Name
	}

	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, s := range gen.Specs {
			ts, ok := s.(*ast.TypeSpec)
			if !ok || !ts.Name.IsExported() {
				continue
			}
			st, ok := ts.Type.(*ast.StructType)
			if !ok {
				continue
			}

			typePath := typePrefix + "::" + ts.Name.Name
			if strings.Contains(typePath, "/") {
				return nil, fmt.Errorf("type path %q contains '/'", typePath)
			}

			if slices.Contains(relations, ts.Name.Name) {
				spec.Relations = append(spec.Relations, relationSpec{Name: ts.Name.Name, TypePath: typePath})
				continue
			}

			fields, err := indexedFields(ts.Name.Name, st)
			if err != nil {
				return nil, err
			}
			if len(fields) == 0 && !slices.Contains(components, ts.Name.Name) {
				continue
			}
			spec.Components = append(spec.Components, componentSpec{
				Name:     ts.Name.Name,
				TypePath: typePath,
				Fields:   fields,
			})
		}
	}

	if len(spec.Components) == 0 && len(spec.Relations) == 0 {
		return nil, fmt.Errorf("%q declares no tagged structs", src)
	}

	var buf strings.Builder
	if err := fileTemplate.Execute(&buf, spec); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	code, err := format.Source([]byte(buf.String()))
	if err != nil {
		return nil, fmt.Errorf("format generated code: %w", err)
	}
	return code, nil
}

// indexedFields extracts the `kventity:"index"` fields of st, validating
// that each has a supported type.
func indexedFields(structName string, st *ast.StructType) ([]indexedField, error) {
	var fields []indexedField
	for _, f := range st.Fields.List {
		if f.Tag == nil || len(f.Names) == 0 {
			continue
		}
		raw, err := strconv.Unquote(f.Tag.Value)
		if err != nil {
			continue
		}
		tag := reflect.StructTag(raw)
		if tag.Get("kventity") != "index" {
			continue
		}

		ident, ok := f.Type.(*ast.Ident)
		if !ok {
			return nil, fmt.Errorf("%s.%s: indexed fields must be string or numeric, got %s",
				structName, f.Names[0].Name, typeString(f.Type))
		}
		encoder, ok := encoderFor[ident.Name]
		if !ok {
			return nil, fmt.Errorf("%s.%s: type %s is not indexable (string and numeric types only)",
				structName, f.Names[0].Name, ident.Name)
		}

		for _, name := range f.Names {
			fields = append(fields, indexedField{
				GoName:  name.Name,
				KeyName: keyName(name.Name, tag),
				GoType:  ident.Name,
				Encoder: encoder,
			})
		}
	}
	return fields, nil
}

// keyName derives the field name embedded in index keys: the json tag name
// when present, the lower-cased Go name otherwise.
func keyName(goName string, tag reflect.StructTag) string {
	if j := tag.Get("json"); j != "" {
		if name, _, _ := strings.Cut(j, ","); name != "" && name != "-" {
			return name
		}
	}
	return strings.ToLower(goName)
}

func typeString(e ast.Expr) string {
	switch t := e.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		return typeString(t.X) + "." + t.Sel.Name
	case *ast.StarExpr:
		return "*" + typeString(t.X)
	case *ast.ArrayType:
		return "[]" + typeString(t.Elt)
	default:
		return fmt.Sprintf("%T", e)
	}
}

var fileTemplate = template.Must(template.New("bindings").Parse(`// Code generated by kventity-gen. DO NOT EDIT.

package {{.Package}}
{{if .Components}}
import (
	"github.com/MrWong99/kventity"
	"github.com/MrWong99/kventity/keycodec"
)
{{end}}
{{- range .Components}}
// TypePath implements kventity.Component.
func (*{{.Name}}) TypePath() string { return "{{.TypePath}}" }

// IndexedFieldNames implements kventity.Component.
func (*{{.Name}}) IndexedFieldNames() []string {
	return []string{ {{- range .Fields}}"{{.KeyName}}", {{end -}} }
}

// IndexedFields implements kventity.Component.
func (c *{{.Name}}) IndexedFields() []kventity.IndexedField {
	return []kventity.IndexedField{
		{{- range .Fields}}
		{Name: "{{.KeyName}}", Value: {{.Encoder}}(c.{{.GoName}})},
		{{- end}}
	}
}

// {{.Name}}Query builds filters over {{.Name}} entities by indexed field.
type {{.Name}}Query struct {
	db *kventity.DB
}

// New{{.Name}}Query returns a query helper bound to db.
func New{{.Name}}Query(db *kventity.DB) {{.Name}}Query {
	return {{.Name}}Query{db: db}
}
{{$comp := .}}
{{- range .Fields}}
// {{.GoName}} filters on {{.KeyName}} equality.
func (q {{$comp.Name}}Query) {{.GoName}}(v {{.GoType}}) *kventity.Filter[{{$comp.Name}}] {
	return kventity.NewFilter[{{$comp.Name}}](q.db, "{{.KeyName}}", kventity.Eq({{.Encoder}}(v)))
}

// {{.GoName}}Range filters on lo <= {{.KeyName}} < hi.
func (q {{$comp.Name}}Query) {{.GoName}}Range(lo, hi {{.GoType}}) *kventity.Filter[{{$comp.Name}}] {
	return kventity.NewFilter[{{$comp.Name}}](q.db, "{{.KeyName}}", kventity.Between({{.Encoder}}(lo), {{.Encoder}}(hi)))
}
{{- end}}

func init() {
	kventity.Register(kventity.ComponentMeta{
		TypePath:          "{{.TypePath}}",
		IndexedFieldNames: []string{ {{- range .Fields}}"{{.KeyName}}", {{end -}} },
	})
}
{{end}}
{{- range .Relations}}
// TypePath implements kventity.Relation.
func (*{{.Name}}) TypePath() string { return "{{.TypePath}}" }
{{end}}`))
