package controlplane

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"pkg.jsn.cam/wordmill/pkg/wordmill"
	"pkg.jsn.cam/wordmill/pkg/wordmill/protocol"
)

// heartbeatInterval is how often idle workers are probed.
const heartbeatInterval = 10 * time.Second

// heartbeatTimeout bounds the wait for a status:alive reply.
const heartbeatTimeout = 5 * time.Second

// workerConn is one connected worker stub. A worker executes one command at a
// time; ownership passes through the free pool.
type workerConn struct {
	id   string
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

func (wc *workerConn) send(line string) error {
	if _, err := wc.w.WriteString(line + "\n"); err != nil {
		return err
	}

	return wc.w.Flush()
}

func (wc *workerConn) readStatus() (protocol.Status, error) {
	line, err := wc.r.ReadString('\n')
	if err != nil {
		return protocol.Status{}, err
	}

	return protocol.ParseStatus(line)
}

// RemoteRunner drives out-of-process workers over TCP. Each worker stub
// connects to the runner's listener, identifies itself with a hello line, and
// then executes one command at a time.
type RemoteRunner struct {
	Config  wordmill.JobConfig
	LogPath string
	Logger  *log.Logger

	listener net.Listener
	free     chan *workerConn

	mu    sync.Mutex
	live  int
	dead  chan struct{} // closed when the last worker is lost
	once  sync.Once
	stop  chan struct{}
	conns []*workerConn
}

// NewRemoteRunner starts listening on addr. Workers are not awaited yet; call
// WaitForWorkers before handing the runner to the controller.
func NewRemoteRunner(cfg wordmill.JobConfig, addr, logPath string, logger *log.Logger) (*RemoteRunner, error) {
	if logger == nil {
		logger = log.Default()
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	r := &RemoteRunner{
		Config:   cfg,
		LogPath:  logPath,
		Logger:   logger,
		listener: listener,
		dead:     make(chan struct{}),
		stop:     make(chan struct{}),
	}

	logger.Printf("[CONTROLLER] Control plane listening on %s", listener.Addr())

	return r, nil
}

// Addr returns the listener address.
func (r *RemoteRunner) Addr() string {
	return r.listener.Addr().String()
}

// WaitForWorkers blocks until n workers have connected and passed the version
// handshake. Incompatible workers are told to exit and do not count.
func (r *RemoteRunner) WaitForWorkers(n int) error {
	if n < 1 {
		return wordmill.ErrNoWorkersAttached
	}

	r.free = make(chan *workerConn, n)

	accepted := 0
	for accepted < n {
		conn, err := r.listener.Accept()
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}

		wc, err := r.handshake(conn)
		if err != nil {
			r.Logger.Printf("[CONTROLLER] Rejected worker connection: %v", err)
			conn.Close()
			continue
		}

		r.mu.Lock()
		r.conns = append(r.conns, wc)
		r.live++
		r.mu.Unlock()

		r.free <- wc
		accepted++
		r.Logger.Printf("[CONTROLLER] Worker %s attached (%d/%d)", wc.id, accepted, n)
	}

	go r.heartbeatLoop()

	return nil
}

// handshake reads and validates the worker's hello line.
func (r *RemoteRunner) handshake(conn net.Conn) (*workerConn, error) {
	wc := &workerConn{
		conn: conn,
		r:    bufio.NewReader(conn),
		w:    bufio.NewWriter(conn),
	}

	conn.SetReadDeadline(time.Now().Add(heartbeatTimeout))
	defer conn.SetReadDeadline(time.Time{})

	line, err := wc.r.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read hello: %w", err)
	}

	hello, err := protocol.ParseHello(line)
	if err != nil {
		return nil, err
	}

	compatible, err := protocol.IsCompatibleVersion(hello.Version, protocol.WordmillVersion)
	if err != nil {
		return nil, err
	}
	if !compatible {
		wc.send(protocol.VerbExit)
		return nil, fmt.Errorf("worker %s: %s", hello.WorkerID,
			protocol.GetCompatibilityError(hello.Version, protocol.WordmillVersion))
	}

	wc.id = hello.WorkerID

	return wc, nil
}

// RunMapper dispatches a map command to the next free worker and waits for
// its status sequence.
func (r *RemoteRunner) RunMapper(mapperID int, inputFiles []string) error {
	cmd := protocol.Command{
		Verb: protocol.VerbMap,
		Map: &protocol.MapCommand{
			TempDir:    r.Config.TempDir,
			MapperID:   mapperID,
			Reducers:   r.Config.Reducers,
			MinThreads: r.Config.MapperPool.Min,
			MaxThreads: r.Config.MapperPool.Max,
			LogPath:    r.logPathArg(),
			InputFiles: inputFiles,
		},
	}

	return r.dispatch(cmd)
}

// RunReducer dispatches a reduce command to the next free worker and waits
// for its status sequence.
func (r *RemoteRunner) RunReducer(reducerID int) error {
	cmd := protocol.Command{
		Verb: protocol.VerbReduce,
		Reduce: &protocol.ReduceCommand{
			OutputDir:  r.Config.OutputDir,
			TempDir:    r.Config.TempDir,
			ReducerID:  reducerID,
			MinThreads: r.Config.ReducerPool.Min,
			MaxThreads: r.Config.ReducerPool.Max,
			LogPath:    r.logPathArg(),
		},
	}

	return r.dispatch(cmd)
}

// dispatch runs one command on one worker: acquire, send, consume statuses
// until completion or error. A lost connection drops the worker and fails the
// command.
func (r *RemoteRunner) dispatch(cmd protocol.Command) error {
	wc, err := r.acquire()
	if err != nil {
		return err
	}

	if err := wc.send(cmd.Format()); err != nil {
		r.dropWorker(wc, err)
		return fmt.Errorf("%w: %v", wordmill.ErrWorkerLost, err)
	}

	for {
		status, err := wc.readStatus()
		if err != nil {
			r.dropWorker(wc, err)
			return fmt.Errorf("%w: %v", wordmill.ErrWorkerLost, err)
		}

		switch status.Kind {
		case protocol.StatusJobStarted, protocol.StatusJobProcessing:
			// Lifecycle noise; keep waiting for the outcome.
		case protocol.StatusJobCompleted:
			r.free <- wc
			return nil
		case protocol.StatusErrorWord:
			// The worker survives its own job failure; reuse it.
			r.free <- wc
			return fmt.Errorf("worker %s: %s", wc.id, status.Text)
		case protocol.StatusAlive:
			// Stale heartbeat reply; ignore.
		}
	}
}

// acquire takes the next free worker, failing once every worker is gone.
func (r *RemoteRunner) acquire() (*workerConn, error) {
	select {
	case wc := <-r.free:
		return wc, nil
	case <-r.dead:
		return nil, wordmill.ErrNoWorkersAttached
	case <-r.stop:
		return nil, wordmill.ErrNoWorkersAttached
	}
}

// dropWorker removes a worker after a connection failure.
func (r *RemoteRunner) dropWorker(wc *workerConn, cause error) {
	r.Logger.Printf("[CONTROLLER] Worker %s lost: %v", wc.id, cause)
	wc.conn.Close()

	r.mu.Lock()
	r.live--
	if r.live <= 0 {
		r.once.Do(func() { close(r.dead) })
	}
	r.mu.Unlock()
}

// heartbeatLoop probes idle workers. A worker that misses a heartbeat is
// dropped; in-flight workers are skipped because they own their connection.
func (r *RemoteRunner) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			select {
			case wc := <-r.free:
				if err := r.heartbeat(wc); err != nil {
					r.dropWorker(wc, err)
					continue
				}
				r.free <- wc
			default:
				// All workers busy; their liveness shows in command traffic.
			}
		}
	}
}

func (r *RemoteRunner) heartbeat(wc *workerConn) error {
	if err := wc.send(protocol.VerbHeartbeat); err != nil {
		return err
	}

	wc.conn.SetReadDeadline(time.Now().Add(heartbeatTimeout))
	defer wc.conn.SetReadDeadline(time.Time{})

	status, err := wc.readStatus()
	if err != nil {
		return err
	}
	if status.Kind != protocol.StatusAlive {
		return fmt.Errorf("%w: unexpected heartbeat reply %q", wordmill.ErrMalformedStatus, status.Kind)
	}

	return nil
}

// Close tells every worker to exit and shuts the listener down.
func (r *RemoteRunner) Close() error {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}

	r.mu.Lock()
	conns := r.conns
	r.conns = nil
	r.mu.Unlock()

	for _, wc := range conns {
		wc.send(protocol.VerbExit)
		wc.conn.Close()
	}

	return r.listener.Close()
}

// logPathArg substitutes the wire placeholder for an unset log path; the
// line protocol cannot carry an empty field.
func (r *RemoteRunner) logPathArg() string {
	if r.LogPath == "" {
		return "-"
	}

	return r.LogPath
}
