package manager

import (
	"net"
	"strconv"
	"sync/atomic"

	"github.com/alicklee/mapreduce/internal/protocol"
	"github.com/rs/zerolog"
)

// Manager owns the Registry, JobQueue, Scheduler and heartbeat monitor
// and runs the TCP/UDP control loop that drives them. Registry, queue
// and shutdown flag are each a single process-wide value, shared
// across the Manager's four logical threads via a mutex (inside
// Registry/JobQueue) rather than true globals.
type Manager struct {
	Host string
	Port int

	Registry  *Registry
	Queue     *JobQueue
	Scheduler *Scheduler
	Monitor   *HeartbeatMonitor
	Metrics   *Metrics

	logger   zerolog.Logger
	shutdown *atomic.Bool
	nextJob  atomic.Int64

	tcpListener *net.TCPListener
	udpConn     *net.UDPConn
}

// NewManager wires a Manager's components together. sharedDir is the
// base directory for per-job scratch directories.
func NewManager(host string, port int, sharedDir string, metrics *Metrics, logger zerolog.Logger) *Manager {
	shutdown := &atomic.Bool{}
	registry := NewRegistry()
	queue := NewJobQueue()
	scheduler := NewScheduler(registry, queue, metrics, sharedDir, shutdown, logger)
	monitor := NewHeartbeatMonitor(registry, shutdown, scheduler.HandleDeath, logger)

	return &Manager{
		Host:      host,
		Port:      port,
		Registry:  registry,
		Queue:     queue,
		Scheduler: scheduler,
		Monitor:   monitor,
		Metrics:   metrics,
		logger:    logger,
		shutdown:  shutdown,
	}
}

// Run binds the TCP and UDP control sockets, starts the heartbeat
// monitor and scheduler, and serves the TCP accept loop until a
// `shutdown` message is received.
func (m *Manager) Run() error {
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))

	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return err
	}
	listener, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return err
	}
	m.tcpListener = listener
	defer listener.Close()

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	m.udpConn = conn
	defer conn.Close()

	m.logger.Info().Str("host", m.Host).Int("port", m.Port).Msg("manager listening")

	go m.Monitor.Run()
	go m.Scheduler.Run()
	go m.serveUDP()

	m.serveTCP()
	return nil
}

func (m *Manager) serveTCP() {
	for !m.shutdown.Load() {
		conn, ok, err := protocol.Accept(m.tcpListener)
		if err != nil {
			m.logger.Error().Err(err).Msg("tcp accept failed")
			return
		}
		if !ok {
			continue
		}
		go m.handleConn(conn)
	}
}

func (m *Manager) handleConn(conn net.Conn) {
	defer conn.Close()
	msg, ok := protocol.ReadMessage(conn, m.logger)
	if !ok {
		return
	}
	m.dispatch(msg)
}

func (m *Manager) dispatch(msg protocol.Message) {
	switch msg.Type {
	case protocol.Register:
		m.handleRegister(msg)
	case protocol.NewManagerJob:
		m.handleNewJob(msg)
	case protocol.Finished:
		m.Scheduler.Finished(FinishedMsg{
			TaskID: msg.TaskID,
			Addr:   Addr{Host: msg.WorkerHost, Port: msg.WorkerPort},
		})
	case protocol.Shutdown:
		m.handleShutdown()
	default:
		m.logger.Warn().Str("type", string(msg.Type)).Msg("unrecognized message type")
	}
}

func (m *Manager) handleRegister(msg protocol.Message) {
	addr := Addr{Host: msg.WorkerHost, Port: msg.WorkerPort}
	_, replayTaskID, hasReplay := m.Registry.Register(addr)
	if hasReplay {
		m.Scheduler.EnqueueReplay(replayTaskID)
	}
	if m.Metrics != nil {
		m.Metrics.Refresh(m.Registry)
	}

	go func() {
		ok := protocol.Send(addr.Host, addr.Port, protocol.Message{
			Type:       protocol.RegisterAck,
			WorkerHost: addr.Host,
			WorkerPort: addr.Port,
		})
		if !ok {
			m.Scheduler.HandleDeath(addr)
		}
	}()
}

func (m *Manager) handleNewJob(msg protocol.Message) {
	id := int(m.nextJob.Add(1)) - 1
	job := &Job{
		ID:               id,
		InputDirectory:   msg.InputDirectory,
		OutputDirectory:  msg.OutputDirectory,
		MapExecutable:    msg.MapperExecutable,
		ReduceExecutable: msg.ReducerExecutable,
		NumMappers:       msg.NumMappers,
		NumReducers:      msg.NumReducers,
	}
	m.logger.Info().Int("job_id", id).Msg("job submitted")
	m.Queue.Enqueue(job)
}

func (m *Manager) handleShutdown() {
	m.logger.Info().Msg("shutdown requested, notifying workers")
	for _, addr := range m.Registry.LiveWorkers() {
		protocol.Send(addr.Host, addr.Port, protocol.Message{Type: protocol.Shutdown})
	}
	m.shutdown.Store(true)
	m.Queue.Close()
}

func (m *Manager) serveUDP() {
	for !m.shutdown.Load() {
		msg, ok := protocol.ReceiveHeartbeat(m.udpConn, m.logger)
		if !ok {
			continue
		}
		if msg.Type != protocol.Heartbeat {
			continue
		}
		m.Registry.ResetHeartbeat(Addr{Host: msg.WorkerHost, Port: msg.WorkerPort})
	}
}
