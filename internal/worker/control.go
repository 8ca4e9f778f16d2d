package worker

import (
	"net"
	"strconv"
	"sync/atomic"

	"github.com/alicklee/mapreduce/internal/protocol"
	"github.com/rs/zerolog"
)

// Worker runs the single-task-at-a-time control loop: bind, register,
// wait for the ack, start the heartbeat emitter, then dispatch inbound
// task assignments one connection at a time.
type Worker struct {
	Host        string
	Port        int
	ManagerHost string
	ManagerPort int
	ScratchDir  string // base directory for per-task scratch dirs

	logger   zerolog.Logger
	shutdown atomic.Bool
	listener *net.TCPListener
}

// NewWorker builds a Worker bound to (host, port) that will register
// with the Manager at (managerHost, managerPort).
func NewWorker(host string, port int, managerHost string, managerPort int, scratchDir string, logger zerolog.Logger) *Worker {
	return &Worker{
		Host:        host,
		Port:        port,
		ManagerHost: managerHost,
		ManagerPort: managerPort,
		ScratchDir:  scratchDir,
		logger:      logger,
	}
}

// Run binds the TCP listener, registers with the Manager, and serves
// the dispatch loop until a `shutdown` message arrives or the
// process's own task execution faults.
func (w *Worker) Run() error {
	addr := net.JoinHostPort(w.Host, strconv.Itoa(w.Port))
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return err
	}
	listener, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return err
	}
	w.listener = listener
	defer listener.Close()

	w.logger.Info().Str("host", w.Host).Int("port", w.Port).Msg("worker listening")

	go w.register()
	w.dispatchLoop()
	return nil
}

func (w *Worker) register() {
	ok := protocol.Send(w.ManagerHost, w.ManagerPort, protocol.Message{
		Type:       protocol.Register,
		WorkerHost: w.Host,
		WorkerPort: w.Port,
	})
	if !ok {
		w.logger.Error().Msg("failed to reach manager for registration")
	}
}

func (w *Worker) dispatchLoop() {
	heartbeatStarted := false
	for !w.shutdown.Load() {
		conn, ok, err := protocol.Accept(w.listener)
		if err != nil {
			w.logger.Error().Err(err).Msg("tcp accept failed")
			return
		}
		if !ok {
			continue
		}

		msg, ok := protocol.ReadMessage(conn, w.logger)
		conn.Close()
		if !ok {
			continue
		}

		switch msg.Type {
		case protocol.RegisterAck:
			if !heartbeatStarted {
				heartbeatStarted = true
				go w.emitHeartbeats()
			}
		case protocol.NewMapTask:
			w.runMapTask(msg)
		case protocol.NewReduceTask:
			w.runReduceTask(msg)
		case protocol.Shutdown:
			w.shutdown.Store(true)
		default:
			w.logger.Warn().Str("type", string(msg.Type)).Msg("unrecognized message type")
		}
	}
}

func (w *Worker) runMapTask(msg protocol.Message) {
	spec := MapTaskSpec{
		TaskID:          msg.TaskID,
		InputPaths:      msg.InputPaths,
		Executable:      msg.Executable,
		NumPartitions:   msg.NumPartitions,
		OutputDirectory: msg.OutputDirectory,
	}
	if err := RunMapTask(spec, w.ScratchDir, w.logger); err != nil {
		w.fault(err)
		return
	}
	w.reportFinished(msg.TaskID)
}

func (w *Worker) runReduceTask(msg protocol.Message) {
	spec := ReduceTaskSpec{
		TaskID:          msg.TaskID,
		InputPaths:      msg.InputPaths,
		Executable:      msg.Executable,
		OutputDirectory: msg.OutputDirectory,
	}
	if err := RunReduceTask(spec, w.ScratchDir, w.logger); err != nil {
		w.fault(err)
		return
	}
	w.reportFinished(msg.TaskID)
}

func (w *Worker) reportFinished(taskID int) {
	protocol.Send(w.ManagerHost, w.ManagerPort, protocol.Message{
		Type:       protocol.Finished,
		TaskID:     taskID,
		WorkerHost: w.Host,
		WorkerPort: w.Port,
	})
}

// fault handles a sub-program failure: a non-zero executable exit
// never sends a failure message, it relies entirely on the Manager's
// heartbeat timeout. The Worker stops emitting heartbeats and exits
// its dispatch loop by setting the shutdown flag; the Manager will
// reassign the task once it stops hearing from this Worker.
func (w *Worker) fault(err error) {
	w.logger.Error().Err(err).Msg("task execution faulted, worker considers itself dead")
	w.shutdown.Store(true)
}
