package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"sort"
	"strconv"
	"text/template"

	"github.com/samber/lo"
)

// GenerationConfig holds the knobs of generated code.
type GenerationConfig struct {
	OutputSuffix   string
	FunctionPrefix string
	// RegisterInInit adds an init function calling every generated register function.
	RegisterInInit bool
}

// TemplateData is the input of one generated file.
type TemplateData struct {
	PackageName      string
	SourceFile       string
	GeneratorVersion string
	RegisterInInit   bool
	Imports          []TemplateImport
	Structs          []TemplateStruct
}

// TemplateImport is one import line of a generated file.
type TemplateImport struct {
	Name string // empty when the path's last element already names the package
	Path string
}

// TemplateStruct describes one composite registration.
type TemplateStruct struct {
	StructName   string
	TypeName     string
	FunctionName string
	Fields       []TemplateField
}

// TemplateField describes one Field[T] entry.
type TemplateField struct {
	Name          string
	Type          string
	PersistedName string
}

const fileTemplate = `// Code generated by binx-gen{{with .GeneratorVersion}} {{.}}{{end}}. DO NOT EDIT.
// Source: {{.SourceFile}}

package {{.PackageName}}

import (
	"github.com/hengadev/binx"
{{- range .Imports}}
	{{if .Name}}{{.Name}} {{end}}{{quote .Path}}
{{- end}}
)
{{if .RegisterInInit}}
func init() {
{{- range .Structs}}
	if err := {{.FunctionName}}(); err != nil {
		panic(err)
	}
{{- end}}
}
{{end}}
{{- range .Structs}}
{{$s := .}}
// {{.FunctionName}} registers {{.StructName}} as {{quote .TypeName}} with a reflection-free field table.
func {{.FunctionName}}() error {
	return binx.RegisterComposite({{quote .TypeName}},
{{- range .Fields}}
		binx.Field[{{$s.StructName}}]{
			Name: {{quote .PersistedName}},
			Get:  func(v *{{$s.StructName}}) any { return v.{{.Name}} },
			Set: func(v *{{$s.StructName}}, x any) (err error) {
				v.{{.Name}}, err = binx.As[{{.Type}}](x)
				return err
			},
		},
{{- end}}
	)
}
{{- end}}
`

// TemplateEngine renders generated files.
type TemplateEngine struct {
	file *template.Template
}

// NewTemplateEngine parses the built-in templates.
func NewTemplateEngine() (*TemplateEngine, error) {
	tmpl, err := template.New("file").Funcs(template.FuncMap{
		"quote": strconv.Quote,
	}).Parse(fileTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &TemplateEngine{file: tmpl}, nil
}

// GenerateCode renders data and gofmts the result.
func (e *TemplateEngine) GenerateCode(data TemplateData) ([]byte, error) {
	if len(data.Structs) == 0 {
		return nil, fmt.Errorf("no structs to generate for %s", data.SourceFile)
	}
	var buf bytes.Buffer
	if err := e.file.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	code, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("generated code for %s does not parse: %w", data.SourceFile, err)
	}
	return code, nil
}

// BuildTemplateData turns the structs discovered in one source file into template data.
// All structs must come from the same file.
func BuildTemplateData(structs []StructInfo, config GenerationConfig, version string) TemplateData {
	data := TemplateData{
		GeneratorVersion: version,
		RegisterInInit:   config.RegisterInInit,
	}
	imports := make(map[string]string)
	for _, info := range structs {
		data.PackageName = info.PackageName
		data.SourceFile = info.SourceFile
		for name, path := range info.Imports {
			imports[name] = path
		}

		ts := TemplateStruct{
			StructName:   info.StructName,
			TypeName:     info.TypeName,
			FunctionName: config.FunctionPrefix + info.StructName + "Binx",
		}
		for _, f := range info.Fields {
			if !f.Persisted() {
				continue
			}
			ts.Fields = append(ts.Fields, TemplateField{Name: f.Name, Type: f.Type, PersistedName: f.PersistedName})
		}
		data.Structs = append(data.Structs, ts)
	}

	names := lo.Keys(imports)
	sort.Strings(names)
	data.Imports = lo.Map(names, func(name string, _ int) TemplateImport {
		imp := TemplateImport{Path: imports[name]}
		if importName(imp.Path) != name {
			imp.Name = name
		}
		return imp
	})
	return data
}
