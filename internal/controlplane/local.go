// Package controlplane provides the two WorkerRunner implementations: local
// in-process workers and remote workers driven over a TCP command/status
// link.
package controlplane

import (
	"log"

	"pkg.jsn.cam/wordmill/internal/mapper"
	"pkg.jsn.cam/wordmill/internal/reducer"
	"pkg.jsn.cam/wordmill/pkg/wordmill"
)

// LocalRunner executes mappers and reducers as in-process tasks. Commands
// become function calls and status becomes the returned error.
type LocalRunner struct {
	Config wordmill.JobConfig
	Logger *log.Logger
}

// NewLocalRunner creates a runner bound to one job configuration.
func NewLocalRunner(cfg wordmill.JobConfig, logger *log.Logger) *LocalRunner {
	if logger == nil {
		logger = log.Default()
	}

	return &LocalRunner{Config: cfg, Logger: logger}
}

// RunMapper runs one mapper to completion.
func (r *LocalRunner) RunMapper(mapperID int, inputFiles []string) error {
	m := &mapper.Mapper{
		TempDir:  r.Config.TempDir,
		ID:       mapperID,
		Reducers: r.Config.Reducers,
		Bounds:   r.Config.MapperPool,
		Logger:   r.Logger,
	}

	return m.Run(inputFiles)
}

// RunReducer runs one reducer to completion.
func (r *LocalRunner) RunReducer(reducerID int) error {
	red := &reducer.Reducer{
		OutputDir:  r.Config.OutputDir,
		TempDir:    r.Config.TempDir,
		ID:         reducerID,
		Bounds:     r.Config.ReducerPool,
		Logger:     r.Logger,
		OutputName: r.Config.ResultFileName(reducerID),
	}

	return red.Run()
}
