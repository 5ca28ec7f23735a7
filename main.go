// pattern: Imperative Shell
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"labkit/internal/cli"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses global flags and dispatches the rest to the CLI app.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("labkit", flag.ContinueOnError)
	flags.SetOutput(stderr)
	// Stop parsing flags after the first non-flag arg (the subcommand),
	// so that --help after a subcommand is handled by the subcommand.
	flags.SetInterspersed(false)

	configDir := flags.StringP("config-dir", "c", "", "config directory (default: ~/.config/labkit)")
	parentDir := flags.String("parent-dir", "", "directory holding the labs (overrides parent_dir)")
	verbose := flags.BoolP("verbose", "v", false, "log to stderr at debug level")
	noProgress := flags.Bool("no-progress", false, "print plain step lines instead of the progress view")

	env := cli.Env{Version: version, Stdout: stdout, Stderr: stderr}

	// Override Usage before Parse so --help uses the CLI app's help
	flags.Usage = func() {
		cli.BuildApp(env).PrintHelp(stderr)
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	env.ConfigDir = *configDir
	env.ParentDir = *parentDir
	env.Verbose = *verbose
	env.NoProgress = *noProgress

	return cli.BuildApp(env).Execute(ctx, flags.Args())
}
