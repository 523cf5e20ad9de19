package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/orizon-lang/cpu0isel/internal/cli"
	"github.com/orizon-lang/cpu0isel/internal/driver"
	"github.com/orizon-lang/cpu0isel/internal/watch"
)

// cpu0-lower runs the Cpu0 call lowering and operand legalization pass over
// the lowering requests in a JSON file and prints the legalized graphs.
//
//	cpu0-lower [flags] request.json
//
// Flags override the values of the -config file.
func main() {
	var (
		configPath  string
		targetPath  string
		reloc       string
		jsonOutput  bool
		watchMode   bool
		verbose     bool
		debug       bool
		jobs        int
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to a cpu0-lower JSON config file")
	flag.StringVar(&targetPath, "target", "", "path to a JSON target descriptor")
	flag.StringVar(&reloc, "reloc", "", "relocation model override: static or pic")
	flag.BoolVar(&jsonOutput, "json", false, "print reports (or -version) as JSON")
	flag.BoolVar(&watchMode, "watch", false, "lower again whenever the request file changes")
	flag.BoolVar(&verbose, "v", false, "verbose output")
	flag.BoolVar(&debug, "debug", false, "trace every lowered node")
	flag.IntVar(&jobs, "j", 0, "functions lowered in parallel (0 = GOMAXPROCS)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		cli.PrintVersion(os.Stdout, "cpu0-lower", jsonOutput)
		return
	}

	cfg, err := cli.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("cpu0-lower: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "target":
			cfg.Target = targetPath
		case "reloc":
			cfg.Reloc = reloc
		case "json":
			cfg.JSON = jsonOutput
		case "watch":
			cfg.Watch = watchMode
		case "v":
			cfg.Verbose = verbose
		case "debug":
			cfg.Debug = debug
		case "j":
			cfg.Jobs = jobs
		}
	})

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: cpu0-lower [flags] request.json")
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)
	logger := cli.NewLogger(cfg.Verbose, cfg.Debug)

	st, err := cfg.Subtarget()
	if err != nil {
		log.Fatalf("cpu0-lower: %v", err)
	}
	dr := driver.New(st, logger)
	logger.Info("target %s/%s/%s", st.Arch, st.Endian, st.Reloc)

	if !cfg.Watch {
		cli.HandleError(lowerFile(context.Background(), dr, cfg, path, os.Stdout), logger)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := lowerFile(ctx, dr, cfg, path, os.Stdout); err != nil {
		logger.Warn("%v", err)
	}
	logger.Info("watching %s", path)
	err = watch.File(ctx, path, watch.DefaultSettle, logger, func() error {
		return lowerFile(ctx, dr, cfg, path, os.Stdout)
	})
	cli.HandleError(err, logger)
}

func lowerFile(ctx context.Context, dr *driver.Driver, cfg *cli.Config, path string, w io.Writer) error {
	reqs, err := driver.LoadRequests(path)
	if err != nil {
		return err
	}
	reports, err := dr.LowerAll(ctx, reqs, cfg.Jobs)
	if err != nil {
		return err
	}

	if cfg.JSON {
		return driver.WriteJSON(w, reports)
	}
	for i, r := range reports {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := r.WriteText(w); err != nil {
			return err
		}
	}
	return nil
}
