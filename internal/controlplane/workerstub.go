package controlplane

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net"
	"os"

	"github.com/google/uuid"

	"pkg.jsn.cam/wordmill/internal/mapper"
	"pkg.jsn.cam/wordmill/internal/reducer"
	"pkg.jsn.cam/wordmill/pkg/wordmill"
	"pkg.jsn.cam/wordmill/pkg/wordmill/protocol"
)

// WorkerStub is the out-of-process peer: it connects to the controller,
// executes map and reduce commands, and reports status lines.
type WorkerStub struct {
	id     string
	logger *log.Logger

	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

// NewWorkerStub assigns the stub its identity. The logger may be nil.
func NewWorkerStub(logger *log.Logger) *WorkerStub {
	if logger == nil {
		logger = log.Default()
	}

	return &WorkerStub{
		id:     uuid.New().String(),
		logger: logger,
	}
}

// Run connects to the controller at addr and serves commands until exit or
// connection loss. Connection loss is an error: the controller interprets it
// as worker failure, and the stub's exit code must agree.
func (s *WorkerStub) Run(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("connect controller %s: %w", addr, err)
	}
	defer conn.Close()

	s.conn = conn
	s.r = bufio.NewReader(conn)
	s.w = bufio.NewWriter(conn)

	hello := protocol.Hello{WorkerID: s.id, Version: protocol.WordmillVersion}
	if err := s.send(hello.Format()); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	s.logger.Printf("[WORKER:%s] Connected to controller at %s", s.id, addr)

	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return fmt.Errorf("%w: controller closed the connection", wordmill.ErrWorkerLost)
			}
			return fmt.Errorf("read command: %w", err)
		}

		cmd, err := protocol.ParseCommand(line)
		if err != nil {
			s.logger.Printf("[WORKER:%s] %v", s.id, err)
			s.sendStatus(protocol.Status{Kind: protocol.StatusErrorWord, Text: err.Error()})
			return err
		}

		switch cmd.Verb {
		case protocol.VerbHeartbeat:
			if err := s.sendStatus(protocol.Status{Kind: protocol.StatusAlive}); err != nil {
				return err
			}

		case protocol.VerbExit:
			s.logger.Printf("[WORKER:%s] Exit requested", s.id)
			return nil

		case protocol.VerbMap:
			if err := s.runJob(func(jobLogger *log.Logger) error {
				m := &mapper.Mapper{
					TempDir:  cmd.Map.TempDir,
					ID:       cmd.Map.MapperID,
					Reducers: cmd.Map.Reducers,
					Bounds:   wordmill.PoolBounds{Min: cmd.Map.MinThreads, Max: cmd.Map.MaxThreads},
					Logger:   jobLogger,
				}
				return m.Run(cmd.Map.InputFiles)
			}, cmd.Map.LogPath); err != nil {
				return err
			}

		case protocol.VerbReduce:
			if err := s.runJob(func(jobLogger *log.Logger) error {
				red := &reducer.Reducer{
					OutputDir: cmd.Reduce.OutputDir,
					TempDir:   cmd.Reduce.TempDir,
					ID:        cmd.Reduce.ReducerID,
					Bounds:    wordmill.PoolBounds{Min: cmd.Reduce.MinThreads, Max: cmd.Reduce.MaxThreads},
					Logger:    jobLogger,
				}
				return red.Run()
			}, cmd.Reduce.LogPath); err != nil {
				return err
			}
		}
	}
}

// runJob wraps one map or reduce execution in the status lifecycle. The
// returned error reflects the control channel only; job failures travel as
// status:error and leave the stub serving.
func (s *WorkerStub) runJob(job func(*log.Logger) error, logPath string) error {
	if err := s.sendStatus(protocol.Status{Kind: protocol.StatusJobStarted}); err != nil {
		return err
	}
	if err := s.sendStatus(protocol.Status{Kind: protocol.StatusJobProcessing}); err != nil {
		return err
	}

	jobLogger, cleanup := s.loggerFor(logPath)
	err := job(jobLogger)
	cleanup()

	if err != nil {
		s.logger.Printf("[WORKER:%s] Job failed: %v", s.id, err)
		return s.sendStatus(protocol.Status{Kind: protocol.StatusErrorWord, Text: err.Error()})
	}

	return s.sendStatus(protocol.Status{Kind: protocol.StatusJobCompleted})
}

// loggerFor tees job logs into the path carried by the command. The "-"
// placeholder means no log file.
func (s *WorkerStub) loggerFor(logPath string) (*log.Logger, func()) {
	if logPath == "" || logPath == "-" {
		return s.logger, func() {}
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		s.logger.Printf("[WORKER:%s] Cannot open log file %s: %v", s.id, logPath, err)
		return s.logger, func() {}
	}

	logger := log.New(io.MultiWriter(s.logger.Writer(), f), "", log.LstdFlags)

	return logger, func() { f.Close() }
}

func (s *WorkerStub) send(line string) error {
	if _, err := s.w.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	return s.w.Flush()
}

func (s *WorkerStub) sendStatus(status protocol.Status) error {
	return s.send(status.Format())
}
