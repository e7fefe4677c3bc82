package codegen

import (
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"io/fs"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/hengadev/binx"
)

// Directive marks a struct for generation. An optional argument sets the wire name.
const Directive = "binx:register"

// StructInfo contains information about a struct marked with //binx:register
type StructInfo struct {
	PackageName string
	StructName  string
	TypeName    string // wire name passed to RegisterComposite
	SourceFile  string
	Fields      []FieldInfo
	Imports     map[string]string // package name -> import path, for field types only
}

// FieldInfo describes one struct field as binx sees it.
type FieldInfo struct {
	Name             string
	Type             string
	PersistedName    string
	Tag              string
	HasTag           bool
	Exported         bool
	Transient        bool
	Embedded         bool
	IsValid          bool
	ValidationErrors []string

	expr ast.Expr
}

// Persisted reports whether the field is part of the wire form.
func (f FieldInfo) Persisted() bool {
	return f.Exported && !f.Transient
}

// DiscoveryConfig holds configuration for struct discovery
type DiscoveryConfig struct {
	// SkipSuffixes excludes files by name suffix. Generated files are always skipped.
	SkipSuffixes []string

	// OutputSuffix identifies generated files. Default: _binx
	OutputSuffix string
}

// DiscoverStructs discovers structs marked //binx:register in the given package directory.
func DiscoverStructs(packagePath string, config *DiscoveryConfig) ([]StructInfo, error) {
	if config == nil {
		config = &DiscoveryConfig{}
	}
	suffix := config.OutputSuffix
	if suffix == "" {
		suffix = "_binx"
	}

	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, packagePath, func(fi fs.FileInfo) bool {
		name := fi.Name()
		if strings.HasSuffix(name, "_test.go") || strings.HasSuffix(name, suffix+".go") {
			return false
		}
		for _, s := range config.SkipSuffixes {
			if strings.HasSuffix(name, s) {
				return false
			}
		}
		return true
	}, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	var structs []StructInfo
	for pkgName, pkg := range pkgs {
		// Skip test packages
		if strings.HasSuffix(pkgName, "_test") {
			continue
		}
		for fileName, file := range pkg.Files {
			structs = append(structs, discoverStructsInFile(fileName, file, pkgName)...)
		}
	}

	// map iteration order is random; keep output stable
	sort.Slice(structs, func(i, j int) bool {
		if structs[i].SourceFile != structs[j].SourceFile {
			return structs[i].SourceFile < structs[j].SourceFile
		}
		return structs[i].StructName < structs[j].StructName
	})
	return structs, nil
}

// discoverStructsInFile discovers marked structs in a single file
func discoverStructsInFile(fileName string, file *ast.File, pkgName string) []StructInfo {
	imports := fileImports(file)

	var structs []StructInfo
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts := spec.(*ast.TypeSpec)
			structType, ok := ts.Type.(*ast.StructType)
			if !ok || ts.TypeParams != nil {
				continue
			}
			doc := ts.Doc
			if doc == nil && len(gen.Specs) == 1 {
				doc = gen.Doc
			}
			wireName, marked := parseDirective(doc)
			if !marked {
				continue
			}
			if wireName == "" {
				wireName = pkgName + "." + ts.Name.Name
			}
			info := analyzeStruct(fileName, pkgName, ts.Name.Name, structType)
			info.TypeName = wireName
			info.Imports = usedImports(info.Fields, imports)
			structs = append(structs, info)
		}
	}
	return structs
}

// parseDirective looks for //binx:register [name] in a comment group.
func parseDirective(doc *ast.CommentGroup) (string, bool) {
	if doc == nil {
		return "", false
	}
	for _, c := range doc.List {
		text := strings.TrimPrefix(c.Text, "//")
		text = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(text, "/*"), "*/"))
		rest, ok := strings.CutPrefix(text, Directive)
		if !ok {
			continue
		}
		if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
			// binx:registered or similar
			continue
		}
		return strings.TrimSpace(rest), true
	}
	return "", false
}

// analyzeStruct collects every field of a marked struct.
func analyzeStruct(fileName, pkgName, structName string, structType *ast.StructType) StructInfo {
	info := StructInfo{
		PackageName: pkgName,
		StructName:  structName,
		SourceFile:  filepath.Base(fileName),
		Fields:      []FieldInfo{},
	}
	for _, field := range structType.Fields.List {
		if len(field.Names) == 0 {
			info.Fields = append(info.Fields, analyzeField(embeddedName(field.Type), field, true))
			continue
		}
		for _, name := range field.Names {
			info.Fields = append(info.Fields, analyzeField(name.Name, field, false))
		}
	}
	return info
}

func analyzeField(fieldName string, field *ast.Field, embedded bool) FieldInfo {
	fieldInfo := FieldInfo{
		Name:             fieldName,
		Type:             getTypeString(field.Type),
		Exported:         token.IsExported(fieldName),
		Embedded:         embedded,
		IsValid:          true,
		ValidationErrors: []string{},
		expr:             field.Type,
	}
	if field.Tag != nil {
		if raw, err := strconv.Unquote(field.Tag.Value); err == nil {
			fieldInfo.Tag, fieldInfo.HasTag = reflect.StructTag(raw).Lookup(binx.StructTag)
		}
	}
	fieldInfo.PersistedName, fieldInfo.Transient = binx.ParseFieldTag(fieldName, fieldInfo.Tag)
	return fieldInfo
}

func embeddedName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return embeddedName(t.X)
	case *ast.SelectorExpr:
		return t.Sel.Name
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return embeddedName(t.X)
	}
	return "unknown"
}

// getTypeString converts an ast.Expr to its source form
func getTypeString(expr ast.Expr) string {
	return types.ExprString(expr)
}

func fileImports(file *ast.File) map[string]string {
	imports := make(map[string]string, len(file.Imports))
	for _, spec := range file.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		name := importName(path)
		if spec.Name != nil {
			name = spec.Name.Name
		}
		if name == "_" || name == "." {
			continue
		}
		imports[name] = path
	}
	return imports
}

// importName guesses the package name of an import path without loading it.
func importName(path string) string {
	parts := strings.Split(path, "/")
	name := parts[len(parts)-1]
	if len(parts) > 1 && len(name) > 1 && name[0] == 'v' && strings.Trim(name[1:], "0123456789") == "" {
		name = parts[len(parts)-2]
	}
	if i := strings.Index(name, ".v"); i > 0 {
		name = name[:i]
	}
	return strings.TrimPrefix(strings.ReplaceAll(name, "-", "_"), "go_")
}

// usedImports returns the imports referenced by persisted field types.
func usedImports(fields []FieldInfo, imports map[string]string) map[string]string {
	used := make(map[string]string)
	for _, f := range fields {
		if !f.Persisted() || f.expr == nil {
			continue
		}
		ast.Inspect(f.expr, func(n ast.Node) bool {
			sel, ok := n.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			if ident, ok := sel.X.(*ast.Ident); ok {
				if path, ok := imports[ident.Name]; ok {
					used[ident.Name] = path
				}
			}
			return false
		})
	}
	return used
}
