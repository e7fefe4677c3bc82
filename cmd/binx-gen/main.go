// Command binx-gen generates reflection-free binx registrations for structs marked
// with //binx:register.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hengadev/binx"
	"github.com/hengadev/binx/internal/codegen"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	command := args[0]
	switch command {
	case "generate":
		return generateCommand(args[1:], stdout, stderr)
	case "validate":
		return validateCommand(args[1:], stdout, stderr)
	case "init":
		return initCommand(args[1:], stdout, stderr)
	case "version":
		versionCommand(stdout)
		return 0
	case "-h", "--help", "help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage(stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: binx-gen <command> [options] [package dirs...]\n")
	fmt.Fprintf(w, "\nCommands:\n")
	fmt.Fprintf(w, "  generate  Generate registration code for //binx:register structs\n")
	fmt.Fprintf(w, "  validate  Validate configuration and binx struct tags\n")
	fmt.Fprintf(w, "  init      Initialize configuration file\n")
	fmt.Fprintf(w, "  version   Show version information\n")
	fmt.Fprintf(w, "\nRun 'binx-gen <command> -h' for help on a specific command.\n")
}

func loadValidConfig(path string, stderr io.Writer) (*Config, bool) {
	config, err := LoadConfigOrDefault(path)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return nil, false
	}
	if err := config.Validate(); err != nil {
		fmt.Fprintf(stderr, "Configuration validation failed: %v\n", err)
		return nil, false
	}
	return config, true
}

func generateCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", DefaultConfigPath, "Path to configuration file")
	outputDir := fs.String("output", "", "Override output directory")
	verbose := fs.Bool("v", false, "Verbose output")
	dryRun := fs.Bool("dry-run", false, "Show what would be generated without writing files")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	packages := fs.Args()
	if len(packages) == 0 {
		packages = []string{"."} // Current directory
	}

	config, ok := loadValidConfig(*configPath, stderr)
	if !ok {
		return 1
	}

	generator := NewGenerator(config, *outputDir, *verbose, stdout)
	results, err := generator.Generate(packages, *dryRun)
	if err != nil {
		var vErr *ValidationFailedError
		if errors.As(err, &vErr) {
			reportValidation(vErr.Structs, stderr)
		}
		fmt.Fprintf(stderr, "Generation failed: %v\n", err)
		return 1
	}

	written := 0
	for _, r := range results {
		if !r.Unchanged {
			written++
		}
	}
	fmt.Fprintf(stdout, "Code generation complete: %d file(s) written, %d unchanged\n", written, len(results)-written)
	return 0
}

func reportValidation(structs []codegen.StructInfo, w io.Writer) {
	for _, info := range structs {
		for _, ve := range codegen.CollectErrors(info) {
			fmt.Fprintf(w, "    ✗ %s.%s: %s\n", ve.Struct, ve.Field, ve.Message)
		}
	}
}

func validateCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", DefaultConfigPath, "Path to configuration file")
	verbose := fs.Bool("v", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	packages := fs.Args()
	if len(packages) == 0 {
		packages = []string{"."} // Current directory
	}

	fmt.Fprintf(stdout, "Validating configuration at %s...\n", *configPath)
	config, ok := loadValidConfig(*configPath, stderr)
	if !ok {
		return 1
	}
	if *verbose {
		fmt.Fprintln(stdout, "✓ Configuration file is valid")
	}

	hasErrors := false
	for _, pkg := range packages {
		if *verbose {
			fmt.Fprintf(stdout, "Validating package: %s\n", pkg)
		}

		structs, err := discoverAndValidate(pkg, config)
		var vErr *ValidationFailedError
		if err != nil && !errors.As(err, &vErr) {
			fmt.Fprintf(stderr, "%v\n", err)
			hasErrors = true
			continue
		}

		if len(structs) == 0 {
			if *verbose {
				fmt.Fprintf(stdout, "  No registered structs found in %s\n", pkg)
			}
			continue
		}

		fmt.Fprintf(stdout, "Found %d registered structs in %s:\n", len(structs), pkg)
		for _, info := range structs {
			fmt.Fprintf(stdout, "  %s as %q (%s)\n", info.StructName, info.TypeName, info.SourceFile)

			problems := codegen.CollectErrors(info)
			if len(problems) == 0 {
				if *verbose {
					for _, f := range info.Fields {
						if f.Persisted() {
							fmt.Fprintf(stdout, "    ✓ %s.%s -> %s\n", info.StructName, f.Name, f.PersistedName)
						}
					}
				}
				fmt.Fprintf(stdout, "    ✓ All fields valid\n")
				continue
			}
			hasErrors = true
			for _, ve := range problems {
				fmt.Fprintf(stdout, "    ✗ %s.%s: %s\n", ve.Struct, ve.Field, ve.Message)
			}
		}
		if vErr != nil {
			hasErrors = true
		}
	}

	if hasErrors {
		fmt.Fprintf(stderr, "\nValidation failed with errors.\n")
		return 1
	}
	fmt.Fprintln(stdout, "\n✓ All validations passed!")
	return 0
}

func initCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(stderr)
	force := fs.Bool("force", false, "Overwrite existing configuration file")
	configPath := fs.String("config", DefaultConfigPath, "Path of the configuration file to create")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if !*force {
		if _, err := os.Stat(*configPath); err == nil {
			fmt.Fprintf(stderr, "Configuration file %s already exists. Use -force to overwrite.\n", *configPath)
			return 1
		}
	}

	fmt.Fprintf(stdout, "Creating configuration file at %s...\n", *configPath)
	if err := SaveConfig(DefaultConfig(), *configPath); err != nil {
		fmt.Fprintf(stderr, "Failed to create config file: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "Configuration file created!")
	return 0
}

func versionCommand(w io.Writer) {
	fmt.Fprintf(w, "binx-gen %s\n", binx.FullVersionInfo())
	fmt.Fprintln(w, "Code generator for the binx serialization library")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Features:")
	fmt.Fprintln(w, "  - AST-based discovery of //binx:register structs")
	fmt.Fprintln(w, "  - binx tag and field type validation")
	fmt.Fprintln(w, "  - Reflection-free RegisterComposite field tables")
	fmt.Fprintln(w, "  - Unchanged files are not rewritten")
}
