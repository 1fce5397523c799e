// Package wifi owns the network interface lifecycle for the node's two
// simultaneous roles: the always-on access point and the optional upstream
// station. All state lives in one consumer goroutine; the radio's event
// stream and the HTTP layer's command mailbox are the only ways in.
package wifi

import (
	"context"
	"log/slog"

	"weatherstation-go/bus"
	"weatherstation-go/types"
	"weatherstation-go/x/timex"
)

// TopicStatus carries the retained coordinator status on the bus.
var TopicStatus = bus.T("wifi", "status")

// Radio is the dual-role 802.11 collaborator boundary. Join is asynchronous:
// its resolution arrives as events, not as the return value.
type Radio interface {
	StartAP(cfg types.APConfig) error
	Join(creds types.Credentials) error
	Events() <-chan types.WifiEvent
}

// CredentialStore persists station credentials across restarts.
type CredentialStore interface {
	Credentials() (types.Credentials, bool)
	SaveCredentials(types.Credentials) error
}

// Signaler is the indicator subset this service drives.
type Signaler interface {
	Started()
	Connected()
}

// Config wires the service's collaborators.
type Config struct {
	Radio  Radio
	Creds  CredentialStore
	Sink   Signaler
	Logger *slog.Logger
	// StartHTTP starts the dependent request coordinator. Called at most
	// once, from the service goroutine.
	StartHTTP func() error
	// CommandQueueLen bounds the mailbox; default 8.
	CommandQueueLen int
}

// Service is the connectivity coordinator.
type Service struct {
	cfg  Config
	cmds *bus.Mailbox[types.WifiCommand]

	// Consumer-goroutine state; no locks needed.
	role        types.WifiRole
	staSSID     string
	staAddr     string
	httpStarted bool
	retryHTTP   bool
}

func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		cfg:  cfg,
		cmds: bus.NewMailbox[types.WifiCommand](cfg.CommandQueueLen),
		role: types.RoleAPOnly,
	}
}

// RequestConnect enqueues a web-originated station connection attempt.
// Returns false when the mailbox is full; the caller may retry.
func (s *Service) RequestConnect(creds types.Credentials) bool {
	return s.cmds.TrySend(types.WifiCommand{Kind: types.CmdStaConnect, Creds: creds})
}

// Start brings up the access point and launches the coordinator goroutine.
// The AP begins broadcasting immediately; the station role stays idle until
// credentials arrive (persisted ones are replayed automatically).
func (s *Service) Start(ctx context.Context, conn *bus.Connection, ap types.APConfig) error {
	if err := s.cfg.Radio.StartAP(ap); err != nil {
		return err
	}
	// Replay persisted credentials so the node rejoins after restart.
	if creds, ok := s.cfg.Creds.Credentials(); ok {
		if !s.cmds.TrySend(types.WifiCommand{Kind: types.CmdStaConnect, Creds: creds}) {
			s.cfg.Logger.Warn("wifi: command queue full, dropping persisted connect")
		}
	}
	go s.serviceLoop(ctx, conn)
	return nil
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	s.publishStatus(conn)
	for {
		// A dropped start-dependent-service command is retryable, never lost
		// for good: try again before blocking on the next stimulus.
		if s.retryHTTP {
			s.retryHTTP = !s.cmds.TrySend(types.WifiCommand{Kind: types.CmdStartHTTPServer})
		}
		select {
		case <-ctx.Done():
			s.cfg.Logger.Info("wifi: coordinator stopping")
			return
		case ev := <-s.cfg.Radio.Events():
			s.handleEvent(conn, ev)
		case cmd := <-s.cmds.C():
			s.handleCommand(conn, cmd)
		}
	}
}

func (s *Service) handleEvent(conn *bus.Connection, ev types.WifiEvent) {
	s.cfg.Logger.Info("wifi: event", slog.String("kind", ev.Kind.String()))
	switch ev.Kind {
	case types.EventAPStarted:
		if !s.cmds.TrySend(types.WifiCommand{Kind: types.CmdStartHTTPServer}) {
			s.cfg.Logger.Warn("wifi: command queue full, will retry http start")
			s.retryHTTP = true
		}
		if s.cfg.Sink != nil {
			s.cfg.Sink.Started()
		}
	case types.EventStaGotIP:
		if !s.cmds.TrySend(types.WifiCommand{Kind: types.CmdStaConnectedGotIP, Addr: ev.Addr}) {
			s.cfg.Logger.Warn("wifi: command queue full, dropping got-ip")
		}
	case types.EventStaDisconnected:
		// Dual-mode is maintained at all times: the AP stays up. The
		// station-side identity is gone with the link.
		s.role = types.RoleAPOnly
		s.staSSID = ""
		s.staAddr = ""
		s.publishStatus(conn)
	case types.EventAPStopped, types.EventStaConnecting, types.EventStaConnected:
		// Transitional; nothing to coordinate.
	}
}

func (s *Service) handleCommand(conn *bus.Connection, cmd types.WifiCommand) {
	s.cfg.Logger.Info("wifi: command", slog.String("kind", cmd.Kind.String()))
	switch cmd.Kind {
	case types.CmdStartHTTPServer:
		if s.httpStarted || s.cfg.StartHTTP == nil {
			return
		}
		if err := s.cfg.StartHTTP(); err != nil {
			s.cfg.Logger.Error("wifi: http start failed", slog.Any("error", err))
			return
		}
		s.httpStarted = true
	case types.CmdStaConnect:
		if err := s.cfg.Creds.SaveCredentials(cmd.Creds); err != nil {
			s.cfg.Logger.Warn("wifi: credentials not persisted", slog.Any("error", err))
		}
		s.role = types.RoleAPConnecting
		s.staSSID = cmd.Creds.SSID
		s.publishStatus(conn)
		if err := s.cfg.Radio.Join(cmd.Creds); err != nil {
			s.cfg.Logger.Error("wifi: join failed", slog.Any("error", err))
			s.role = types.RoleAPOnly
			s.publishStatus(conn)
		}
	case types.CmdStaConnectedGotIP:
		s.role = types.RoleAPConnected
		s.staAddr = cmd.Addr
		if s.cfg.Sink != nil {
			s.cfg.Sink.Connected()
		}
		s.publishStatus(conn)
	}
}

// publishStatus posts the retained coordinator status so late subscribers
// (the request coordinator's status endpoint) can answer truthfully.
func (s *Service) publishStatus(conn *bus.Connection) {
	if conn == nil {
		return
	}
	conn.Publish(conn.NewMessage(TopicStatus, types.WifiStatus{
		Role: s.role,
		SSID: s.staSSID,
		Addr: s.staAddr,
		TsMs: timex.NowMs(),
	}, true))
}
