package main

import (
	"pkg.jsn.cam/wordmill/internal/controlplane"
)

// runWorkerMode handles: worker <controllerAddr>. The stub connects out to
// the controller and serves map/reduce commands until told to exit.
func runWorkerMode(args []string) error {
	if len(args) != 1 {
		usage()
	}

	logger, closeLog, err := openLogger("")
	if err != nil {
		return err
	}
	defer closeLog()

	return controlplane.NewWorkerStub(logger).Run(args[0])
}
