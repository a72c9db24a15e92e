package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/tsyne-dev/tsyne-host/internal/executor"
	"github.com/tsyne-dev/tsyne-host/internal/sandbox"
	"github.com/tsyne-dev/tsyne-host/internal/shared/utils"
)

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "token":
		err = cmdToken(os.Args[2:])
	case "build":
		err = cmdBuild(os.Args[2:])
	case "transform":
		err = cmdTransform(os.Args[2:])
	case "runtime":
		err = cmdRuntime(os.Args[2:])
	case "audit":
		err = cmdAudit(os.Args[2:])
	case "run":
		err = cmdRun(os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage()
	default:
		log.Printf("sandboxctl: unknown command %q", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("sandboxctl: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: sandboxctl <command> [flags] [file]

Source is read from the named file, or stdin when the file is "-" or absent.

Commands:
  token      Mint a fresh sandbox token
  build      Transform source and wrap it with its runtime preamble
  transform  Rewrite ambient references under an existing token
  runtime    Print the runtime preamble for a token and whitelist
  audit      Scan transformed output for unguarded capability references
  run        Build and execute source, printing console output and exports

Run "sandboxctl <command> -h" for command flags.`)
}

func cmdToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	fs.Parse(args)

	fmt.Println(sandbox.NewToken())
	return nil
}

func cmdBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	label := fs.String("label", "app", "Instance label")
	mods := fs.String("modules", "", "Comma-separated module whitelist")
	tok := fs.String("token", "", "Reuse an existing token instead of minting one")
	fs.Parse(args)

	source, err := readSource(fs.Args())
	if err != nil {
		return err
	}

	var art *sandbox.Artifact
	if *tok != "" {
		token, perr := sandbox.ParseToken(*tok)
		if perr != nil {
			return perr
		}
		art, err = sandbox.BuildWithToken(source, *label, splitModules(*mods), token)
	} else {
		art, err = sandbox.Build(source, *label, splitModules(*mods))
	}
	if err != nil {
		return err
	}

	return printJSON(art)
}

func cmdTransform(args []string) error {
	fs := flag.NewFlagSet("transform", flag.ExitOnError)
	tok := fs.String("token", "", "Sandbox token (required)")
	fs.Parse(args)

	token, err := requireToken(*tok)
	if err != nil {
		return err
	}
	source, err := readSource(fs.Args())
	if err != nil {
		return err
	}

	code, err := sandbox.Transform(source, token)
	if err != nil {
		return err
	}

	fmt.Println(code)
	return nil
}

func cmdRuntime(args []string) error {
	fs := flag.NewFlagSet("runtime", flag.ExitOnError)
	tok := fs.String("token", "", "Sandbox token (required)")
	mods := fs.String("modules", "", "Comma-separated module whitelist")
	fs.Parse(args)

	token, err := requireToken(*tok)
	if err != nil {
		return err
	}

	fmt.Println(sandbox.GenerateRuntime(token, sandbox.ModuleWhitelist(splitModules(*mods))))
	return nil
}

func cmdAudit(args []string) error {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	tok := fs.String("token", "", "Sandbox token (required)")
	fs.Parse(args)

	token, err := requireToken(*tok)
	if err != nil {
		return err
	}
	source, err := readSource(fs.Args())
	if err != nil {
		return err
	}

	warnings := sandbox.Audit(source, token)
	if warnings == nil {
		warnings = []sandbox.Warning{}
	}
	if err := printJSON(map[string]interface{}{
		"warnings": warnings,
		"count":    len(warnings),
	}); err != nil {
		return err
	}
	if len(warnings) > 0 {
		os.Exit(1)
	}
	return nil
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	label := fs.String("label", "app", "Instance label")
	mods := fs.String("modules", "", "Comma-separated module whitelist")
	timeout := fs.Duration("timeout", 5*time.Second, "Execution budget")
	fs.Parse(args)

	source, err := readSource(fs.Args())
	if err != nil {
		return err
	}

	art, err := sandbox.Build(source, *label, splitModules(*mods))
	if err != nil {
		return err
	}

	cfg := executor.DefaultConfig()
	cfg.Timeout = *timeout
	exec := executor.New(cfg)

	res, execErr := exec.Execute(context.Background(), art, executor.Options{})
	if res != nil {
		for _, line := range res.Console {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", line.Level, line.Message)
		}
		if execErr == nil {
			if err := printJSON(map[string]interface{}{
				"exports":     res.Exports,
				"duration_ms": res.Duration.Milliseconds(),
			}); err != nil {
				return err
			}
		}
	}
	if execErr != nil {
		log.Printf("sandboxctl: %v", execErr)
		os.Exit(runExitCode(execErr))
	}
	return nil
}

// runExitCode maps execution outcomes onto distinct exit codes so
// scripts can tell a policy violation from a timeout.
func runExitCode(err error) int {
	var pe *sandbox.PolicyError
	if errors.As(err, &pe) {
		return 2
	}
	var te *sandbox.TimeoutError
	if errors.As(err, &te) {
		return 3
	}
	return 1
}

func requireToken(raw string) (sandbox.Token, error) {
	if raw == "" {
		return "", fmt.Errorf("a -token is required (mint one with \"sandboxctl token\")")
	}
	return sandbox.ParseToken(raw)
}

// readSource loads the script from the named file, or stdin when the
// argument is "-" or absent.
func readSource(args []string) (string, error) {
	var data []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", err
	}

	source := string(data)
	if err := utils.ValidateSource(source); err != nil {
		return "", err
	}
	return source, nil
}

func splitModules(s string) []string {
	if s == "" {
		return nil
	}
	var mods []string
	for _, m := range strings.Split(s, ",") {
		if m = strings.TrimSpace(m); m != "" {
			mods = append(mods, m)
		}
	}
	return mods
}

func printJSON(v interface{}) error {
	out, err := sonic.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
