// Command binx prints the frames stored in binx-encoded files.
//
// Only built-in types and types registered in this binary can be decoded; frames
// holding application composites fail with a parse error naming the missing type.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hengadev/binx"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	switch args[0] {
	case "dump":
		return dumpCommand(args[1:], stdin, stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, binx.VersionInfo())
		return 0
	case "-h", "--help", "help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: binx <command> [options] [files...]\n")
	fmt.Fprintf(w, "\nCommands:\n")
	fmt.Fprintf(w, "  dump     Decode every frame of the given files ('-' reads stdin)\n")
	fmt.Fprintf(w, "  version  Show version information\n")
}

func dumpCommand(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML or TOML configuration file")
	envFile := fs.String("env", "", "Load configuration from this .env file")
	limit := fs.Int("n", 0, "Stop after this many frames per file (0: no limit)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *configPath != "" && *envFile != "" {
		fmt.Fprintln(stderr, "-config and -env are mutually exclusive")
		return 2
	}

	opts, err := loadOptions(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}

	files := fs.Args()
	if len(files) == 0 {
		files = []string{"-"}
	}
	status := 0
	for _, name := range files {
		if err := dumpFile(name, stdin, stdout, *limit, opts); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", name, err)
			status = 1
		}
	}
	return status
}

func loadOptions(configPath, envFile string) ([]binx.Option, error) {
	var (
		cfg binx.Config
		err error
	)
	switch {
	case configPath != "":
		cfg, err = binx.LoadConfigFile(configPath)
	case envFile != "":
		cfg, err = binx.LoadConfigFromDotEnv(envFile)
	default:
		cfg, err = binx.LoadConfigFromEnvironment()
	}
	if err != nil {
		return nil, err
	}
	return cfg.Options()
}

func dumpFile(name string, stdin io.Reader, stdout io.Writer, limit int, opts []binx.Option) error {
	var src io.Reader = io.NopCloser(stdin)
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}
	r, err := binx.ReadFrom(src, opts...)
	if err != nil {
		return err
	}

	for i := 0; r.More() && (limit <= 0 || i < limit); i++ {
		off := r.Offset()
		v, err := r.Read()
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s #%d @%d: %s\n", name, i, off, describe(v))
	}
	return nil
}

func describe(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("string %q", x)
	case binx.Char:
		return fmt.Sprintf("char %q", rune(x))
	case []byte:
		return fmt.Sprintf("[]uint8 (%d bytes)", len(x))
	}
	return fmt.Sprintf("%T %v", v, v)
}
