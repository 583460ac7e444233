package controller

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"pkg.jsn.cam/wordmill/internal/controlplane"
	"pkg.jsn.cam/wordmill/internal/fileio"
	"pkg.jsn.cam/wordmill/pkg/wordmill"
)

func testConfig(t *testing.T, mappers, reducers int) wordmill.JobConfig {
	t.Helper()

	cfg := wordmill.NewJobConfig(t.TempDir(), t.TempDir(), t.TempDir(), mappers, reducers)
	cfg.MapperPool = wordmill.PoolBounds{Min: 1, Max: 2}
	cfg.ReducerPool = wordmill.PoolBounds{Min: 1, Max: 2}

	return cfg
}

func writeInput(t *testing.T, cfg wordmill.JobConfig, name, content string) {
	t.Helper()

	if err := os.WriteFile(filepath.Join(cfg.InputDir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func runLocal(t *testing.T, cfg wordmill.JobConfig) *Controller {
	t.Helper()

	c, err := New(cfg, controlplane.NewLocalRunner(cfg, nil), nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := c.Run(); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	return c
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}

	return string(data)
}

func TestController_EmptyInputDirectory(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, 2, 2)
	c := runLocal(t, cfg)

	if got := c.CurrentState(); got != StateSuccess {
		t.Errorf("state = %s, want SUCCESS", got)
	}

	marker := filepath.Join(cfg.OutputDir, cfg.SuccessFileName)
	if info, err := os.Stat(marker); err != nil || info.Size() != 0 {
		t.Errorf("success marker: info=%v err=%v, want empty file", info, err)
	}

	final := filepath.Join(cfg.OutputDir, cfg.FinalOutputName)
	if got := readFile(t, final); got != "" {
		t.Errorf("final file = %q, want empty", got)
	}
}

func TestController_SingleFileSimpleContent(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, 1, 1)
	writeInput(t, cfg, "a.txt", "Hello, hello WORLD 123 world.\n")

	runLocal(t, cfg)

	got := readFile(t, filepath.Join(cfg.OutputDir, "result_partition0.txt"))
	want := "hello: 2\nworld: 2\n"
	if got != want {
		t.Errorf("result_partition0.txt = %q, want %q", got, want)
	}

	if got := readFile(t, filepath.Join(cfg.OutputDir, cfg.FinalOutputName)); got != want {
		t.Errorf("final file = %q, want %q", got, want)
	}
}

func TestController_PartitioningAcrossTwoReducers(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, 1, 2)
	writeInput(t, cfg, "a.txt", "alpha beta gamma alpha\n")

	runLocal(t, cfg)

	union := make(map[string]int)
	for r := 0; r < 2; r++ {
		path := filepath.Join(cfg.OutputDir, cfg.ResultFileName(r))
		pairs, err := fileio.ReadCounts(path, nil)
		if err != nil {
			t.Fatal(err)
		}
		for _, kc := range pairs {
			if _, dup := union[kc.Key]; dup {
				t.Errorf("key %q appears in more than one reducer output", kc.Key)
			}
			union[kc.Key] = kc.Count

			if want := wordmill.PartitionKey(kc.Key, 2); want != r {
				t.Errorf("key %q in output %d, want %d", kc.Key, r, want)
			}
		}
	}

	want := map[string]int{"alpha": 2, "beta": 1, "gamma": 1}
	if len(union) != len(want) {
		t.Fatalf("union = %v, want %v", union, want)
	}
	for key, count := range want {
		if union[key] != count {
			t.Errorf("union[%q] = %d, want %d", key, union[key], count)
		}
	}
}

func TestController_MultipleMappersSameKey(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, 2, 1)
	writeInput(t, cfg, "a.txt", "x x y\n")
	writeInput(t, cfg, "b.txt", "y y x\n")

	runLocal(t, cfg)

	got := readFile(t, filepath.Join(cfg.OutputDir, "result_partition0.txt"))
	want := "x: 3\ny: 3\n"
	if got != want {
		t.Errorf("result_partition0.txt = %q, want %q", got, want)
	}
}

func TestController_CaseAndPunctuation(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, 1, 1)
	writeInput(t, cfg, "a.txt", "The the THE, the!\n")

	runLocal(t, cfg)

	got := readFile(t, filepath.Join(cfg.OutputDir, "result_partition0.txt"))
	want := "the: 4\n"
	if got != want {
		t.Errorf("result_partition0.txt = %q, want %q", got, want)
	}
}

func TestController_MoreMappersThanFiles(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, 4, 1)
	writeInput(t, cfg, "a.txt", "solo file\n")

	c := runLocal(t, cfg)

	if got := c.CurrentState(); got != StateSuccess {
		t.Errorf("state = %s, want SUCCESS", got)
	}

	got := readFile(t, filepath.Join(cfg.OutputDir, "result_partition0.txt"))
	want := "file: 1\nsolo: 1\n"
	if got != want {
		t.Errorf("result_partition0.txt = %q, want %q", got, want)
	}
}

func TestController_DeterministicAcrossRuns(t *testing.T) {
	t.Parallel()

	content := "to be or not to be that is the question\n"

	outputs := make([]string, 2)
	for i := range outputs {
		cfg := testConfig(t, 2, 3)
		writeInput(t, cfg, "a.txt", content)
		runLocal(t, cfg)

		for r := 0; r < 3; r++ {
			outputs[i] += readFile(t, filepath.Join(cfg.OutputDir, cfg.ResultFileName(r)))
			outputs[i] += "\x00"
		}
		outputs[i] += readFile(t, filepath.Join(cfg.OutputDir, cfg.FinalOutputName))
	}

	if outputs[0] != outputs[1] {
		t.Errorf("two runs differ:\n%q\n%q", outputs[0], outputs[1])
	}
}

func TestController_MissingInputDirFails(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, 1, 1)
	cfg.InputDir = filepath.Join(t.TempDir(), "missing")

	c, err := New(cfg, controlplane.NewLocalRunner(cfg, nil), nil)
	if err != nil {
		t.Fatal(err)
	}

	err = c.Run()
	if !errors.Is(err, wordmill.ErrRunFailed) {
		t.Fatalf("Run error = %v, want ErrRunFailed", err)
	}
	if got := c.CurrentState(); got != StateFailed {
		t.Errorf("state = %s, want FAILED", got)
	}

	if _, err := os.Stat(filepath.Join(cfg.OutputDir, cfg.SuccessFileName)); !os.IsNotExist(err) {
		t.Errorf("success marker exists after failure")
	}
}

func TestController_InvalidWorkerCounts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mappers  int
		reducers int
		wantErr  error
	}{
		{"zero mappers", 0, 1, wordmill.ErrInvalidMapperCount},
		{"negative mappers", -1, 1, wordmill.ErrInvalidMapperCount},
		{"zero reducers", 1, 0, wordmill.ErrInvalidReducerCount},
		{"negative reducers", 1, -3, wordmill.ErrInvalidReducerCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := wordmill.NewJobConfig(t.TempDir(), t.TempDir(), t.TempDir(), tt.mappers, tt.reducers)
			_, err := New(cfg, controlplane.NewLocalRunner(cfg, nil), nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// failingRunner fails a chosen phase while delegating the rest.
type failingRunner struct {
	delegate    *controlplane.LocalRunner
	failMapper  bool
	failReducer bool

	reducersRun int
}

func (f *failingRunner) RunMapper(mapperID int, inputFiles []string) error {
	if f.failMapper {
		return fmt.Errorf("injected mapper failure")
	}
	return f.delegate.RunMapper(mapperID, inputFiles)
}

func (f *failingRunner) RunReducer(reducerID int) error {
	f.reducersRun++
	if f.failReducer {
		return fmt.Errorf("injected reducer failure")
	}
	return f.delegate.RunReducer(reducerID)
}

func TestController_MapperFailureSkipsReducers(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, 1, 2)
	writeInput(t, cfg, "a.txt", "doomed run\n")

	runner := &failingRunner{delegate: controlplane.NewLocalRunner(cfg, nil), failMapper: true}
	c, err := New(cfg, runner, nil)
	if err != nil {
		t.Fatal(err)
	}

	err = c.Run()
	if !errors.Is(err, wordmill.ErrRunFailed) {
		t.Fatalf("Run error = %v, want ErrRunFailed", err)
	}
	if got := c.CurrentState(); got != StateFailed {
		t.Errorf("state = %s, want FAILED", got)
	}
	if runner.reducersRun != 0 {
		t.Errorf("reducers launched after mapper failure: %d", runner.reducersRun)
	}

	if _, err := os.Stat(filepath.Join(cfg.OutputDir, cfg.SuccessFileName)); !os.IsNotExist(err) {
		t.Errorf("success marker exists after failure")
	}
}

func TestController_ReducerFailureSkipsAggregation(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, 1, 1)
	writeInput(t, cfg, "a.txt", "doomed run\n")

	runner := &failingRunner{delegate: controlplane.NewLocalRunner(cfg, nil), failReducer: true}
	c, err := New(cfg, runner, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Run(); !errors.Is(err, wordmill.ErrRunFailed) {
		t.Fatalf("Run error = %v, want ErrRunFailed", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.OutputDir, cfg.FinalOutputName)); !os.IsNotExist(err) {
		t.Errorf("final file exists after reducer failure")
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, cfg.SuccessFileName)); !os.IsNotExist(err) {
		t.Errorf("success marker exists after reducer failure")
	}
}

func TestController_CleanupTempOptIn(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, 1, 1)
	cfg.CleanupTemp = true
	writeInput(t, cfg, "a.txt", "tidy up\n")

	runLocal(t, cfg)

	if _, err := os.Stat(cfg.TempDir); !os.IsNotExist(err) {
		t.Errorf("temp dir still present after opt-in cleanup")
	}
}

func TestController_TempLeftInPlaceByDefault(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, 1, 1)
	writeInput(t, cfg, "a.txt", "keep intermediates\n")

	runLocal(t, cfg)

	files, err := fileio.ListFiles(cfg.TempDir, ".tmp")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Errorf("intermediate files = %v, want 1 partition file left in place", files)
	}
}

func TestController_ProgressCallback(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, 2, 2)
	writeInput(t, cfg, "a.txt", "one two\n")
	writeInput(t, cfg, "b.txt", "three four\n")

	var mapDone, reduceDone int
	progress := func(phase string, done, total int) {
		switch phase {
		case "map":
			mapDone = done
		case "reduce":
			reduceDone = done
		}
	}

	c, err := New(cfg, controlplane.NewLocalRunner(cfg, nil), nil, WithProgress(progress))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}

	if mapDone != 2 {
		t.Errorf("map progress reached %d, want 2", mapDone)
	}
	if reduceDone != 2 {
		t.Errorf("reduce progress reached %d, want 2", reduceDone)
	}
}
