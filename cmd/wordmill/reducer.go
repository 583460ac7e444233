package main

import (
	"fmt"
	"strconv"

	"pkg.jsn.cam/wordmill/internal/reducer"
)

// runReducerMode handles: reducer <outputDir> <tempDir> <reducerId>
// [<minPool> <maxPool>] <logPath>.
func runReducerMode(args []string) error {
	if len(args) < 4 {
		usage()
	}

	outputDir, tempDir := args[0], args[1]

	reducerID, err := strconv.Atoi(args[2])
	if err != nil || reducerID < 0 {
		return fmt.Errorf("invalid reducer id: %q", args[2])
	}

	bounds, rest, err := takePoolBounds(args[3:])
	if err != nil {
		return err
	}

	if len(rest) != 1 {
		return fmt.Errorf("reducer needs exactly one log path after the pool bounds")
	}
	logPath := rest[0]

	logger, closeLog, err := openLogger(logPath)
	if err != nil {
		return err
	}
	defer closeLog()

	r := &reducer.Reducer{
		OutputDir: outputDir,
		TempDir:   tempDir,
		ID:        reducerID,
		Bounds:    bounds,
		Logger:    logger,
	}

	return r.Run()
}
