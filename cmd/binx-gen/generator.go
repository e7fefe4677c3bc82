package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/hengadev/binx"
	"github.com/hengadev/binx/internal/codegen"
)

// Generator handles the code generation process
type Generator struct {
	config    *Config
	outputDir string
	verbose   bool
	out       io.Writer
}

// GeneratedFile records the outcome for one output file.
type GeneratedFile struct {
	Path      string
	Structs   []string
	Unchanged bool
}

// NewGenerator creates a new Generator instance. The config must already be validated.
func NewGenerator(config *Config, outputDir string, verbose bool, out io.Writer) *Generator {
	if out == nil {
		out = io.Discard
	}
	return &Generator{
		config:    config,
		outputDir: outputDir,
		verbose:   verbose,
		out:       out,
	}
}

func (g *Generator) logf(format string, args ...any) {
	if g.verbose {
		fmt.Fprintf(g.out, format+"\n", args...)
	}
}

// Generate performs code generation for the specified package directories. Files whose
// content would not change are left untouched.
func (g *Generator) Generate(packages []string, dryRun bool) ([]GeneratedFile, error) {
	g.logf("Starting code generation for packages: %v", packages)
	if dryRun {
		g.logf("Running in dry-run mode")
	}

	templateEngine, err := codegen.NewTemplateEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to create template engine: %w", err)
	}

	var results []GeneratedFile
	for _, packagePath := range packages {
		pkgConfig := g.config.Packages[packagePath]
		if pkgConfig.Skip {
			g.logf("Skipping package %s (marked as skip)", packagePath)
			continue
		}

		structs, err := discoverAndValidate(packagePath, g.config)
		if err != nil {
			return results, err
		}
		g.logf("Found %d registered structs in %s", len(structs), packagePath)

		byFile := lo.GroupBy(structs, func(s codegen.StructInfo) string { return s.SourceFile })
		files := lo.Keys(byFile)
		sort.Strings(files)

		for _, sourceFile := range files {
			group := byFile[sourceFile]
			data := codegen.BuildTemplateData(group, g.config.Generation.ToCodegenConfig(), binx.Version)
			code, err := templateEngine.GenerateCode(data)
			if err != nil {
				return results, fmt.Errorf("failed to generate code for %s: %w", sourceFile, err)
			}

			outputPath := filepath.Join(g.outputDirFor(packagePath, pkgConfig),
				strings.TrimSuffix(sourceFile, ".go")+g.config.Generation.OutputSuffix+".go")
			result := GeneratedFile{
				Path:    outputPath,
				Structs: lo.Map(group, func(s codegen.StructInfo, _ int) string { return s.StructName }),
			}

			if existing, err := os.ReadFile(outputPath); err == nil && bytes.Equal(existing, code) {
				result.Unchanged = true
				g.logf("Unchanged: %s", outputPath)
				results = append(results, result)
				continue
			}

			if dryRun {
				fmt.Fprintf(g.out, "Would generate: %s\n", outputPath)
				g.logf("Generated code:\n%s", code)
			} else {
				if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
					return results, fmt.Errorf("failed to create output directory: %w", err)
				}
				if err := os.WriteFile(outputPath, code, 0644); err != nil {
					return results, fmt.Errorf("failed to write generated file %s: %w", outputPath, err)
				}
				g.logf("Generated: %s", outputPath)
			}
			results = append(results, result)
		}
	}
	return results, nil
}

func (g *Generator) outputDirFor(packagePath string, pkgConfig PackageConfig) string {
	switch {
	case g.outputDir != "":
		return g.outputDir
	case pkgConfig.OutputDir != "":
		return pkgConfig.OutputDir
	}
	return packagePath
}

// discoverAndValidate returns the registered structs of a package, or every validation
// problem found in it.
func discoverAndValidate(packagePath string, config *Config) ([]codegen.StructInfo, error) {
	structs, err := codegen.DiscoverStructs(packagePath, config.DiscoveryConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to discover structs in package %s: %w", packagePath, err)
	}

	validator := codegen.NewTagValidator()
	var problems []error
	for i := range structs {
		if err := validator.ValidateStruct(&structs[i]); err != nil {
			problems = append(problems, fmt.Errorf("%s.%s: %w", packagePath, structs[i].StructName, err))
		}
	}
	if len(problems) > 0 {
		return structs, &ValidationFailedError{Structs: structs, Err: errors.Join(problems...)}
	}
	return structs, nil
}

// ValidationFailedError is returned when discovered structs carry invalid fields.
type ValidationFailedError struct {
	Structs []codegen.StructInfo
	Err     error
}

func (e *ValidationFailedError) Error() string {
	return "validation failed: " + e.Err.Error()
}

func (e *ValidationFailedError) Unwrap() error {
	return e.Err
}
