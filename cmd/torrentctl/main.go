package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/torrentctl/internal/bencode"
	"github.com/danmuck/torrentctl/internal/config"
	"github.com/danmuck/torrentctl/internal/logging"
	"github.com/rs/zerolog/log"
)

const usage = `usage: torrentctl [-config path] <command> [args]

commands:
  inspect [-json] <file>       summarize a .torrent file
  infohash <file>              print the info-hash
  decode <file>                dump any bencoded file as JSON
  announce [flags] <file>      announce to the first tracker
  scrape <file>                fetch swarm counts from the tracker
  serve [-addr addr]           run the inspection service
  config template [-o path]    print or write a config template
  config validate <path>       validate a config file
`

var errUsage = errors.New("usage")

type app struct {
	cfg    config.Config
	stdout io.Writer
	stderr io.Writer
}

func main() {
	logging.ConfigureRuntime()
	bencode.SetLogger(log.Logger)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("torrentctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "", "path to a torrentctl config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "torrentctl: %v\n", err)
			return 1
		}
		cfg = loaded
	}
	a := &app{cfg: cfg, stdout: stdout, stderr: stderr}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	var err error
	switch cmd {
	case "inspect":
		err = a.inspect(rest)
	case "infohash":
		err = a.infohash(rest)
	case "decode":
		err = a.decode(rest)
	case "announce":
		err = a.announce(ctx, rest)
	case "scrape":
		err = a.scrape(ctx, rest)
	case "serve":
		err = a.serve(ctx, rest)
	case "config":
		err = a.configCmd(rest)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "torrentctl: unknown command %q\n", cmd)
		fmt.Fprint(stderr, usage)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		fmt.Fprint(stderr, usage)
		return 2
	default:
		log.Debug().Str("command", cmd).Err(err).Msg("command failed")
		fmt.Fprintf(stderr, "torrentctl %s: %v\n", cmd, err)
		return 1
	}
}

func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {}
	return fs
}

// oneArg parses fs and returns its single positional argument.
func oneArg(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 || strings.TrimSpace(fs.Arg(0)) == "" {
		return "", errUsage
	}
	return fs.Arg(0), nil
}
