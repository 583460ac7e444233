// Command wordmill is the single-host MapReduce word-count engine. One binary
// serves every role: the controller that drives a run, the mapper and reducer
// workers it launches, the TCP worker stub, and an interactive mode.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  wordmill controller [flags] <inputDir> <outputDir> <tempDir> <M> <R> [<mapMin> <mapMax> <redMin> <redMax>] [<logPath>]
  wordmill mapper <tempDir> <mapperId> <R> [<minPool> <maxPool>] <logPath> <inputFile1> [<inputFile2> ...]
  wordmill reducer <outputDir> <tempDir> <reducerId> [<minPool> <maxPool>] <logPath>
  wordmill worker <controllerAddr>
  wordmill interactive

Controller flags:
  -config <path>   JSON config file (pool bounds, file naming)
  -cleanup         remove the temp directory after success
  -db <path>       checkpoint run state to a database file
  -listen <addr>   drive remote workers over TCP instead of in-process tasks
  -workers <n>     number of remote workers to wait for (with -listen)
`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	mode := strings.ToLower(os.Args[1])
	args := os.Args[2:]

	var err error
	switch mode {
	case "controller":
		err = runController(args)
	case "mapper":
		err = runMapperMode(args)
	case "reducer":
		err = runReducerMode(args)
	case "worker":
		err = runWorkerMode(args)
	case "interactive":
		err = runInteractive()
	default:
		fmt.Fprintf(os.Stderr, "unknown mode: %s\n\n", mode)
		usage()
	}

	if err != nil {
		log.Fatalf("[MAIN] %s failed: %v", mode, err)
	}
}

// openLogger builds the mode's logger, teeing to logPath when one is given.
// The "-" placeholder (used on the control-plane wire) means no file.
func openLogger(logPath string) (*log.Logger, func(), error) {
	if logPath == "" || logPath == "-" {
		return log.New(os.Stderr, "", log.LstdFlags), func() {}, nil
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", logPath, err)
	}

	logger := log.New(io.MultiWriter(os.Stderr, f), "", log.LstdFlags)

	return logger, func() { f.Close() }, nil
}
