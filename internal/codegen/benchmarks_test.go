package codegen

import (
	"fmt"
	"strings"
	"testing"
)

// BenchmarkDiscoverStructs benchmarks the struct discovery performance
func BenchmarkDiscoverStructs(b *testing.B) {
	tempDir := b.TempDir()
	for i := 0; i < 10; i++ {
		writeSource(b, tempDir, fmt.Sprintf("test%d.go", i), generateTestStructFile(i))
	}

	config := &DiscoveryConfig{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		structs, err := DiscoverStructs(tempDir, config)
		if err != nil {
			b.Fatal(err)
		}
		if len(structs) != 30 {
			b.Fatalf("expected 30 structs, got %d", len(structs))
		}
	}
}

// BenchmarkTemplateGeneration benchmarks rendering one file with several structs
func BenchmarkTemplateGeneration(b *testing.B) {
	engine, err := NewTemplateEngine()
	if err != nil {
		b.Fatal(err)
	}

	tempDir := b.TempDir()
	writeSource(b, tempDir, "bench.go", generateTestStructFile(0))
	structs, err := DiscoverStructs(tempDir, nil)
	if err != nil {
		b.Fatal(err)
	}
	data := BuildTemplateData(structs, GenerationConfig{FunctionPrefix: "Register"}, "bench")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.GenerateCode(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkValidateStruct(b *testing.B) {
	tempDir := b.TempDir()
	writeSource(b, tempDir, "bench.go", generateTestStructFile(0))
	structs, err := DiscoverStructs(tempDir, nil)
	if err != nil {
		b.Fatal(err)
	}
	validator := NewTagValidator()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		info := structs[0]
		info.Fields = append([]FieldInfo(nil), structs[0].Fields...)
		if err := validator.ValidateStruct(&info); err != nil {
			b.Fatal(err)
		}
	}
}

func generateTestStructFile(index int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "package bench\n\nimport \"time\"\n\n")
	for s := 0; s < 3; s++ {
		fmt.Fprintf(&sb, "//binx:register bench.t%d_%d\ntype T%d_%d struct {\n", index, s, index, s)
		for f := 0; f < 12; f++ {
			switch f % 4 {
			case 0:
				fmt.Fprintf(&sb, "\tF%d string `binx:\"f%d\"`\n", f, f)
			case 1:
				fmt.Fprintf(&sb, "\tF%d int64\n", f)
			case 2:
				fmt.Fprintf(&sb, "\tF%d []float64\n", f)
			default:
				fmt.Fprintf(&sb, "\tF%d time.Time\n", f)
			}
		}
		fmt.Fprintf(&sb, "\tskip string `binx:\"-\"`\n}\n\n")
	}
	return sb.String()
}
