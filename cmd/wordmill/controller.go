package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/schollz/progressbar/v3"

	"pkg.jsn.cam/wordmill/internal/config"
	"pkg.jsn.cam/wordmill/internal/controller"
	"pkg.jsn.cam/wordmill/internal/controlplane"
	"pkg.jsn.cam/wordmill/pkg/storage"
	"pkg.jsn.cam/wordmill/pkg/wordmill"
)

func runController(args []string) error {
	fs := flag.NewFlagSet("controller", flag.ExitOnError)
	configPath := fs.String("config", "", "JSON config file")
	cleanup := fs.Bool("cleanup", false, "remove temp directory after success")
	dbPath := fs.String("db", "", "checkpoint run state to this database file")
	listen := fs.String("listen", "", "drive remote workers over TCP on this address")
	workers := fs.Int("workers", 0, "number of remote workers to wait for")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) < 5 {
		usage()
	}

	mappers, err := parsePositive(rest[3], "M")
	if err != nil {
		return err
	}
	reducers, err := parsePositive(rest[4], "R")
	if err != nil {
		return err
	}

	cfg := wordmill.NewJobConfig(rest[0], rest[1], rest[2], mappers, reducers)
	cfg.CleanupTemp = *cleanup

	if *configPath != "" {
		f, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		f.Apply(&cfg)
	}

	// Optional trailing arguments: four pool bounds, then a log path. CLI
	// pool bounds override the config file.
	logPath, err := applyPoolArgs(&cfg, rest[5:])
	if err != nil {
		return err
	}

	logger, closeLog, err := openLogger(logPath)
	if err != nil {
		return err
	}
	defer closeLog()

	opts := []controller.Option{controller.WithProgress(progressReporter())}

	if *dbPath != "" {
		backend, err := storage.NewBboltBackend(*dbPath)
		if err != nil {
			return fmt.Errorf("open checkpoint database: %w", err)
		}
		store, err := controller.NewRunStore(backend)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, controller.WithStore(store))
	}

	var runner controller.WorkerRunner
	if *listen != "" {
		if *workers < 1 {
			return fmt.Errorf("-listen requires -workers >= 1")
		}

		// The reduce command carries no naming conventions, so remote
		// workers always write the default partition names.
		if cfg.PartitionPrefix != wordmill.DefaultPartitionPrefix || cfg.PartitionSuffix != wordmill.DefaultPartitionSuffix {
			return fmt.Errorf("custom partition naming is not supported with -listen")
		}

		remote, err := controlplane.NewRemoteRunner(cfg, *listen, logPath, logger)
		if err != nil {
			return err
		}
		defer remote.Close()

		logger.Printf("[CONTROLLER] Waiting for %d workers on %s", *workers, remote.Addr())
		if err := remote.WaitForWorkers(*workers); err != nil {
			return err
		}
		runner = remote
	} else {
		runner = controlplane.NewLocalRunner(cfg, logger)
	}

	c, err := controller.New(cfg, runner, logger, opts...)
	if err != nil {
		return err
	}

	return c.Run()
}

// applyPoolArgs consumes the optional trailing controller arguments:
// [<mapMin> <mapMax> <redMin> <redMax>] [<logPath>]. A lone trailing
// non-integer argument is the log path.
func applyPoolArgs(cfg *wordmill.JobConfig, rest []string) (logPath string, err error) {
	switch {
	case len(rest) == 0:
		return "", nil

	case len(rest) == 1:
		if _, err := strconv.Atoi(rest[0]); err == nil {
			return "", fmt.Errorf("expected 4 pool bounds or a log path, got %q", rest[0])
		}
		return rest[0], nil

	case len(rest) == 4 || len(rest) == 5:
		bounds := make([]int, 4)
		for i := 0; i < 4; i++ {
			n, err := strconv.Atoi(rest[i])
			if err != nil || n < 0 {
				return "", fmt.Errorf("invalid pool bound %q", rest[i])
			}
			bounds[i] = n
		}

		cfg.MapperPool = wordmill.PoolBounds{Min: bounds[0], Max: bounds[1]}
		cfg.ReducerPool = wordmill.PoolBounds{Min: bounds[2], Max: bounds[3]}

		if len(rest) == 5 {
			return rest[4], nil
		}
		return "", nil

	default:
		return "", fmt.Errorf("expected [<mapMin> <mapMax> <redMin> <redMax>] [<logPath>], got %d extra arguments", len(rest))
	}
}

func parsePositive(s, name string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, s)
	}
	if n < 1 {
		return 0, fmt.Errorf("%s must be positive, got %d", name, n)
	}

	return n, nil
}

// progressReporter renders one progress bar per phase on stderr.
func progressReporter() controller.Progress {
	var mu sync.Mutex
	bars := make(map[string]*progressbar.ProgressBar)

	return func(phase string, done, total int) {
		mu.Lock()
		defer mu.Unlock()

		bar, ok := bars[phase]
		if !ok {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription(phase),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionClearOnFinish(),
			)
			bars[phase] = bar
		}

		bar.Set(done)
	}
}
