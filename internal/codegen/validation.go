package codegen

import (
	"fmt"
	"go/ast"
	"strings"
	"unicode"

	"github.com/hengadev/errsx"
)

// unsupportedIdents are builtin types with no binx wire form.
var unsupportedIdents = map[string]string{
	"int":        "use int32 or int64",
	"int8":       "use uint8 (byte) or int16",
	"uint":       "use int64",
	"uint16":     "use binx.Char or int32",
	"uint32":     "use int64",
	"uint64":     "use int64",
	"uintptr":    "not encodable",
	"complex64":  "not encodable",
	"complex128": "not encodable",
	"error":      "not encodable",
}

// TagValidator handles validation of binx tags and field types
type TagValidator struct {
	knownOptions map[string]bool
}

// NewTagValidator creates a new tag validator
func NewTagValidator() *TagValidator {
	return &TagValidator{
		// ParseFieldTag ignores anything after the alias; no option is defined yet
		knownOptions: map[string]bool{},
	}
}

// ValidateFieldTag validates the binx tag of a single field.
func (tv *TagValidator) ValidateFieldTag(field FieldInfo) []string {
	var errors []string
	if !field.HasTag {
		return errors
	}
	tag := strings.TrimSpace(field.Tag)
	if !field.Exported && tag != "-" {
		errors = append(errors, fmt.Sprintf("binx tag on unexported field '%s' has no effect", field.Name))
	}
	if tag == "-" {
		return errors
	}

	alias, opts, _ := strings.Cut(tag, ",")
	alias = strings.TrimSpace(alias)
	if alias == "-" {
		errors = append(errors, fmt.Sprintf("field '%s': '-' cannot be combined with options", field.Name))
	}
	if strings.IndexFunc(alias, unicode.IsSpace) >= 0 {
		errors = append(errors, fmt.Sprintf("field '%s': persisted name %q contains whitespace", field.Name, alias))
	}
	if opts != "" {
		for _, opt := range strings.Split(opts, ",") {
			opt = strings.TrimSpace(opt)
			if !tv.knownOptions[opt] {
				errors = append(errors, fmt.Sprintf("unknown tag option '%s' on field '%s'", opt, field.Name))
			}
		}
	}
	return errors
}

// ValidateFieldType reports field types the writer cannot encode.
func (tv *TagValidator) ValidateFieldType(field FieldInfo) []string {
	if !field.Persisted() || field.expr == nil {
		return nil
	}
	var errors []string
	ast.Inspect(field.expr, func(n ast.Node) bool {
		switch t := n.(type) {
		case *ast.ChanType:
			errors = append(errors, fmt.Sprintf("field '%s': channel types are not encodable", field.Name))
			return false
		case *ast.FuncType:
			errors = append(errors, fmt.Sprintf("field '%s': func types are not encodable", field.Name))
			return false
		case *ast.MapType:
			if key, ok := t.Key.(*ast.Ident); !ok || key.Name != "string" || !isAnyType(t.Value) {
				errors = append(errors, fmt.Sprintf("field '%s': only map[string]any is encodable, got %s", field.Name, getTypeString(t)))
			}
			return false
		case *ast.SelectorExpr:
			// named types from other packages may be registered at run time
			if x, ok := t.X.(*ast.Ident); ok && x.Name == "unsafe" {
				errors = append(errors, fmt.Sprintf("field '%s': unsafe.%s is not encodable", field.Name, t.Sel.Name))
			}
			return false
		case *ast.Ident:
			if hint, bad := unsupportedIdents[t.Name]; bad {
				errors = append(errors, fmt.Sprintf("field '%s': %s has no wire form (%s)", field.Name, t.Name, hint))
			}
		}
		return true
	})
	return errors
}

func isAnyType(expr ast.Expr) bool {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name == "any"
	case *ast.InterfaceType:
		return t.Methods == nil || len(t.Methods.List) == 0
	}
	return false
}

// ValidateStruct validates every field of info in place and returns the problems keyed
// by field name, or nil.
func (tv *TagValidator) ValidateStruct(info *StructInfo) error {
	var errs errsx.Map
	seen := make(map[string]string)

	for i := range info.Fields {
		field := &info.Fields[i]
		problems := tv.ValidateFieldTag(*field)
		problems = append(problems, tv.ValidateFieldType(*field)...)

		if field.Persisted() {
			if prev, dup := seen[field.PersistedName]; dup {
				problems = append(problems, fmt.Sprintf("persisted name %q already used by field '%s'", field.PersistedName, prev))
			} else {
				seen[field.PersistedName] = field.Name
			}
		}

		if len(problems) > 0 {
			field.IsValid = false
			field.ValidationErrors = problems
			errs.Set(field.Name, fmt.Errorf("%s", strings.Join(problems, "; ")))
		}
	}
	if len(seen) == 0 {
		errs.Set(info.StructName, fmt.Errorf("no persisted fields"))
	}
	if !errs.IsEmpty() {
		return errs.AsError()
	}
	return nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Struct  string
	Field   string
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return fmt.Sprintf("struct '%s': %s", ve.Struct, ve.Message)
	}
	return fmt.Sprintf("struct '%s' field '%s': %s", ve.Struct, ve.Field, ve.Message)
}

// CollectErrors flattens the per-field errors of info, in field order.
func CollectErrors(info StructInfo) []ValidationError {
	var out []ValidationError
	for _, f := range info.Fields {
		for _, msg := range f.ValidationErrors {
			out = append(out, ValidationError{Struct: info.StructName, Field: f.Name, Message: msg})
		}
	}
	return out
}
