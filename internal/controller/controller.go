// Package controller implements the top-level driver: directory setup, input
// distribution, worker launch, the map and reduce barriers, final aggregation,
// and the success marker.
package controller

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"pkg.jsn.cam/wordmill/internal/fileio"
	"pkg.jsn.cam/wordmill/pkg/wordmill"
)

// State is one step of the run state machine.
type State string

const (
	StateInit           State = "INIT"
	StateDirsReady      State = "DIRS_READY"
	StateDistributed    State = "DISTRIBUTED"
	StateMapLaunched    State = "MAP_LAUNCHED"
	StateMapDone        State = "MAP_DONE"
	StateReduceLaunched State = "REDUCE_LAUNCHED"
	StateReduceDone     State = "REDUCE_DONE"
	StateAggregated     State = "AGGREGATED"
	StateSuccess        State = "SUCCESS"
	StateFailed         State = "FAILED"
)

// WorkerRunner launches one mapper or reducer and blocks until it completes.
// The controller depends on this capability only; workers may execute as
// in-process tasks or as remote peers over the control plane.
type WorkerRunner interface {
	RunMapper(mapperID int, inputFiles []string) error
	RunReducer(reducerID int) error
}

// Progress is an optional per-phase completion callback, called once per
// finished worker with the done/total counts for that phase.
type Progress func(phase string, done, total int)

// Controller drives one run.
type Controller struct {
	cfg    wordmill.JobConfig
	runner WorkerRunner
	logger *log.Logger

	store    *RunStore // nil disables checkpointing
	progress Progress  // nil disables progress reporting

	runID string
	state State

	mu sync.Mutex
}

// Option configures a Controller.
type Option func(*Controller)

// WithStore enables run-state checkpointing.
func WithStore(store *RunStore) Option {
	return func(c *Controller) { c.store = store }
}

// WithProgress installs a per-phase progress callback.
func WithProgress(p Progress) Option {
	return func(c *Controller) { c.progress = p }
}

// New creates a controller for one run. The logger may be nil.
func New(cfg wordmill.JobConfig, runner WorkerRunner, logger *log.Logger, opts ...Option) (*Controller, error) {
	if cfg.Mappers < 1 {
		return nil, wordmill.ErrInvalidMapperCount
	}
	if cfg.Reducers < 1 {
		return nil, wordmill.ErrInvalidReducerCount
	}

	if logger == nil {
		logger = log.Default()
	}

	c := &Controller{
		cfg:    cfg,
		runner: runner,
		logger: logger,
		runID:  uuid.New().String(),
		state:  StateInit,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// RunID returns the identifier assigned to this run.
func (c *Controller) RunID() string {
	return c.runID
}

// CurrentState returns the state the run has reached.
func (c *Controller) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run drives the state machine to SUCCESS or FAILED. The returned error is
// nil exactly when the success marker was written.
func (c *Controller) Run() error {
	started := time.Now()
	c.logger.Printf("[CONTROLLER] Run %s starting (M=%d, R=%d, input=%s)",
		c.runID, c.cfg.Mappers, c.cfg.Reducers, c.cfg.InputDir)

	if err := c.prepareDirectories(); err != nil {
		return c.fail(fmt.Errorf("directories: %w", err))
	}
	c.transition(StateDirsReady)

	assignments, inputFiles, err := c.distribute()
	if err != nil {
		return c.fail(fmt.Errorf("distribute: %w", err))
	}
	c.transition(StateDistributed)

	if len(inputFiles) == 0 {
		// Nothing to map: the run succeeds with empty output.
		c.logger.Printf("[CONTROLLER] No %s files in %s; writing empty result",
			wordmill.InputExtension, c.cfg.InputDir)
		return c.finishEmpty(started)
	}

	c.transition(StateMapLaunched)
	if err := c.runMappers(assignments); err != nil {
		return c.fail(fmt.Errorf("map phase: %w", err))
	}
	c.transition(StateMapDone)

	c.transition(StateReduceLaunched)
	if err := c.runReducers(); err != nil {
		return c.fail(fmt.Errorf("reduce phase: %w", err))
	}
	c.transition(StateReduceDone)

	keys, total, err := c.aggregate()
	if err != nil {
		return c.fail(fmt.Errorf("aggregate: %w", err))
	}
	c.transition(StateAggregated)

	if err := c.writeSuccessMarker(); err != nil {
		return c.fail(fmt.Errorf("success marker: %w", err))
	}
	c.transition(StateSuccess)

	c.cleanupTemp()
	c.logSummary(started, len(inputFiles), keys, total)

	return nil
}

// prepareDirectories verifies the input directory and ensures output and temp
// directories exist. INIT → DIRS_READY.
func (c *Controller) prepareDirectories() error {
	if err := fileio.ValidateDirectory(c.cfg.InputDir, false); err != nil {
		return fmt.Errorf("input dir: %w", err)
	}
	if err := fileio.ValidateDirectory(c.cfg.OutputDir, true); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	if err := fileio.ValidateDirectory(c.cfg.TempDir, true); err != nil {
		return fmt.Errorf("temp dir: %w", err)
	}

	return nil
}

// distribute assigns input files to mappers round-robin: file i goes to
// mapper i mod M. DIRS_READY → DISTRIBUTED.
func (c *Controller) distribute() ([][]string, []string, error) {
	inputFiles, err := fileio.ListFiles(c.cfg.InputDir, wordmill.InputExtension)
	if err != nil {
		return nil, nil, err
	}

	assignments := make([][]string, c.cfg.Mappers)
	for i, file := range inputFiles {
		m := i % c.cfg.Mappers
		assignments[m] = append(assignments[m], file)
	}

	c.logger.Printf("[CONTROLLER] Distributed %d input files across %d mappers",
		len(inputFiles), c.cfg.Mappers)

	return assignments, inputFiles, nil
}

// runMappers launches one worker per non-empty assignment and waits at the
// map barrier. MAP_LAUNCHED → MAP_DONE.
func (c *Controller) runMappers(assignments [][]string) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		done     int
	)

	launched := 0
	for mapperID, files := range assignments {
		if len(files) == 0 {
			// An empty assignment would produce zero partition bytes.
			c.logger.Printf("[CONTROLLER] Mapper %d has no files, skipping", mapperID)
			continue
		}

		launched++
		wg.Add(1)
		go func(id int, files []string) {
			defer wg.Done()

			err := c.runner.RunMapper(id, files)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.logger.Printf("[CONTROLLER] Mapper %d failed: %v", id, err)
				if firstErr == nil {
					firstErr = fmt.Errorf("mapper %d: %w", id, err)
				}
				return
			}

			done++
			c.report("map", done, launchedCount(assignments))
		}(mapperID, files)
	}

	c.logger.Printf("[CONTROLLER] Launched %d mappers, waiting at map barrier", launched)
	wg.Wait()

	return firstErr
}

// runReducers launches all R reducers and waits at the reduce barrier.
// REDUCE_LAUNCHED → REDUCE_DONE.
func (c *Controller) runReducers() error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		done     int
	)

	for r := 0; r < c.cfg.Reducers; r++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			err := c.runner.RunReducer(id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.logger.Printf("[CONTROLLER] Reducer %d failed: %v", id, err)
				if firstErr == nil {
					firstErr = fmt.Errorf("reducer %d: %w", id, err)
				}
				return
			}

			done++
			c.report("reduce", done, c.cfg.Reducers)
		}(r)
	}

	c.logger.Printf("[CONTROLLER] Launched %d reducers, waiting at reduce barrier", c.cfg.Reducers)
	wg.Wait()

	return firstErr
}

// aggregate merges every reducer output into the final file. With a correct
// partitioner the key sets are disjoint, but repeated keys are summed anyway.
// REDUCE_DONE → AGGREGATED. Returns distinct keys and the total count.
func (c *Controller) aggregate() (keys int, total int, err error) {
	finalTable := make(map[string]int)

	for r := 0; r < c.cfg.Reducers; r++ {
		path := filepath.Join(c.cfg.OutputDir, c.cfg.ResultFileName(r))
		pairs, err := fileio.ReadCounts(path, c.logger)
		if err != nil {
			return 0, 0, fmt.Errorf("reducer output %d: %w", r, err)
		}
		for _, kc := range pairs {
			finalTable[kc.Key] += kc.Count
		}
	}

	finalPath := filepath.Join(c.cfg.OutputDir, c.cfg.FinalOutputName)
	if err := fileio.WriteSortedCounts(finalPath, finalTable); err != nil {
		return 0, 0, err
	}

	for _, count := range finalTable {
		total += count
	}

	c.logger.Printf("[CONTROLLER] Aggregated %d reducer outputs into %s (%d keys)",
		c.cfg.Reducers, finalPath, len(finalTable))

	return len(finalTable), total, nil
}

// writeSuccessMarker creates the empty marker certifying the run.
// AGGREGATED → SUCCESS.
func (c *Controller) writeSuccessMarker() error {
	return fileio.CreateEmptyFile(filepath.Join(c.cfg.OutputDir, c.cfg.SuccessFileName))
}

// finishEmpty completes a run with no input files: empty final output plus
// the success marker, no map or reduce work.
func (c *Controller) finishEmpty(started time.Time) error {
	finalPath := filepath.Join(c.cfg.OutputDir, c.cfg.FinalOutputName)
	if err := fileio.WriteSortedCounts(finalPath, nil); err != nil {
		return c.fail(fmt.Errorf("final output: %w", err))
	}
	c.transition(StateAggregated)

	if err := c.writeSuccessMarker(); err != nil {
		return c.fail(fmt.Errorf("success marker: %w", err))
	}
	c.transition(StateSuccess)

	c.cleanupTemp()
	c.logSummary(started, 0, 0, 0)

	return nil
}

// cleanupTemp removes the temp directory when the run opted in.
func (c *Controller) cleanupTemp() {
	if !c.cfg.CleanupTemp {
		return
	}

	if err := os.RemoveAll(c.cfg.TempDir); err != nil {
		c.logger.Printf("[CONTROLLER] Warning: temp cleanup failed: %v", err)
		return
	}

	c.logger.Printf("[CONTROLLER] Removed temp dir %s", c.cfg.TempDir)
}

// logSummary reports run totals in human units.
func (c *Controller) logSummary(started time.Time, inputFiles, keys, total int) {
	inputBytes, err := fileio.DirSize(c.cfg.InputDir)
	if err != nil {
		inputBytes = 0
	}

	c.logger.Printf("[CONTROLLER] Run %s succeeded: %s input across %s files, %s distinct words, %s total occurrences, %v elapsed",
		c.runID,
		humanize.Bytes(uint64(inputBytes)),
		humanize.Comma(int64(inputFiles)),
		humanize.Comma(int64(keys)),
		humanize.Comma(int64(total)),
		time.Since(started).Round(time.Millisecond))
}

// transition advances the state machine and checkpoints the new state.
func (c *Controller) transition(next State) {
	c.mu.Lock()
	c.state = next
	c.mu.Unlock()

	c.logger.Printf("[CONTROLLER] Run %s: %s", c.runID, next)
	c.checkpoint(next, "")
}

// fail moves the run to FAILED and returns the causing error.
func (c *Controller) fail(cause error) error {
	c.mu.Lock()
	c.state = StateFailed
	c.mu.Unlock()

	c.logger.Printf("[CONTROLLER] Run %s FAILED: %v", c.runID, cause)
	c.checkpoint(StateFailed, cause.Error())

	return fmt.Errorf("%w: %v", wordmill.ErrRunFailed, cause)
}

func (c *Controller) checkpoint(state State, errText string) {
	if c.store == nil {
		return
	}

	record := RunRecord{
		ID:       c.runID,
		State:    state,
		Mappers:  c.cfg.Mappers,
		Reducers: c.cfg.Reducers,
		InputDir: c.cfg.InputDir,
		Error:    errText,
		Updated:  time.Now(),
	}
	if err := c.store.SaveRun(record); err != nil {
		c.logger.Printf("[CONTROLLER] Warning: failed to checkpoint run state: %v", err)
	}
}

func (c *Controller) report(phase string, done, total int) {
	if c.progress != nil {
		c.progress(phase, done, total)
	}
}

// launchedCount counts the non-empty assignments, the denominator for map
// progress.
func launchedCount(assignments [][]string) int {
	n := 0
	for _, files := range assignments {
		if len(files) > 0 {
			n++
		}
	}
	return n
}
