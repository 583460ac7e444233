package main

import (
	"fmt"
	"strconv"

	"pkg.jsn.cam/wordmill/internal/mapper"
	"pkg.jsn.cam/wordmill/pkg/wordmill"
)

// runMapperMode handles: mapper <tempDir> <mapperId> <R> [<minPool> <maxPool>]
// <logPath> <inputFile1> [...]. The pool bounds are present exactly when the
// two arguments after R parse as integers.
func runMapperMode(args []string) error {
	if len(args) < 5 {
		usage()
	}

	tempDir := args[0]

	mapperID, err := strconv.Atoi(args[1])
	if err != nil || mapperID < 0 {
		return fmt.Errorf("invalid mapper id: %q", args[1])
	}

	reducers, err := parsePositive(args[2], "R")
	if err != nil {
		return err
	}

	rest := args[3:]
	bounds, rest, err := takePoolBounds(rest)
	if err != nil {
		return err
	}

	if len(rest) < 2 {
		return fmt.Errorf("mapper needs a log path and at least one input file")
	}
	logPath, inputFiles := rest[0], rest[1:]

	logger, closeLog, err := openLogger(logPath)
	if err != nil {
		return err
	}
	defer closeLog()

	m := &mapper.Mapper{
		TempDir:  tempDir,
		ID:       mapperID,
		Reducers: reducers,
		Bounds:   bounds,
		Logger:   logger,
	}

	return m.Run(inputFiles)
}

// takePoolBounds consumes "<min> <max>" from the front of args when both
// parse as non-negative integers.
func takePoolBounds(args []string) (wordmill.PoolBounds, []string, error) {
	if len(args) >= 2 {
		min, errMin := strconv.Atoi(args[0])
		max, errMax := strconv.Atoi(args[1])
		if errMin == nil && errMax == nil {
			if min < 0 || max < 0 {
				return wordmill.PoolBounds{}, nil, fmt.Errorf("negative pool bounds: %s %s", args[0], args[1])
			}
			return wordmill.PoolBounds{Min: min, Max: max}, args[2:], nil
		}
	}

	return wordmill.PoolBounds{}, args, nil
}
