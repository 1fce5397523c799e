// Package httpd is the node's HTTP surface: the embedded configuration page,
// the firmware update endpoints, and the readings/status queries. The update
// path owns the upgrade storage write cursor; everything else is read-only
// and answers from retained bus snapshots, never from another goroutine's
// memory.
package httpd

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"weatherstation-go/bus"
	"weatherstation-go/errcode"
	"weatherstation-go/types"
)

// Build identifiers reported by /OTAstatus. Overridable via -ldflags.
var (
	Version     = "1.0.2"
	CompileDate = "unknown"
	CompileTime = "unknown"
)

// Config wires the server's collaborators.
type Config struct {
	Updater Updater
	// Restart unconditionally restarts the device; it does not return.
	Restart func()
	// RestartDelay gives the success response time to flush. Default 2 s.
	RestartDelay time.Duration
	// MaxImageSize bounds an accepted upload. Default 1 MiB.
	MaxImageSize int64
	// StallTimeout aborts a session whose body stops making progress.
	// Default 30 s.
	StallTimeout time.Duration
	// Magic is the platform's expected image header prefix.
	Magic []byte

	// Bus carries the retained reading and wifi status snapshots.
	Bus           *bus.Bus
	ReadingsTopic bus.Topic
	WifiTopic     bus.Topic

	// Connect enqueues a station connect request; false means the command
	// queue was full and the client should retry.
	Connect func(types.Credentials) bool

	Logger *slog.Logger
}

// Server handles the HTTP surface. Create with New.
type Server struct {
	cfg Config
	mux *http.ServeMux
	log *slog.Logger

	mu        sync.Mutex
	status    types.UpdateStatus
	receiving bool
	restarted bool // a restart has been scheduled; sessions are over
}

func New(cfg Config) *Server {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 2 * time.Second
	}
	if cfg.MaxImageSize <= 0 {
		cfg.MaxImageSize = 1 << 20
	}
	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if len(cfg.Magic) == 0 {
		// Platform builds inject their real image header; an empty prefix
		// would accept any byte stream.
		cfg.Magic = []byte{0xE9}
	}
	if cfg.ReadingsTopic == nil {
		cfg.ReadingsTopic = bus.T("sensor", "reading")
	}
	if cfg.WifiTopic == nil {
		cfg.WifiTopic = bus.T("wifi", "status")
	}
	s := &Server{
		cfg:    cfg,
		log:    cfg.Logger,
		status: types.UpdatePending,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.index)
	mux.HandleFunc("POST /OTAupdate", s.otaUpdate)
	mux.HandleFunc("GET /OTAstatus", s.otaStatus)
	mux.HandleFunc("GET /readings", s.readings)
	mux.HandleFunc("GET /wifiStatus", s.wifiStatus)
	mux.HandleFunc("POST /wifiConnect", s.wifiConnect)
	s.mux = mux
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Serve blocks, accepting connections from the given listener. The listener
// may be a kernel socket on host builds or the on-chip TCP stack's listener
// on device builds.
func (s *Server) Serve(l net.Listener) error {
	s.log.Info("httpd: serving", slog.String("addr", l.Addr().String()))
	return http.Serve(l, s)
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

// otaStatus answers at any time; it never blocks on an in-progress session.
func (s *Server) otaStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()
	writeJSON(w, types.UpdateInfo{
		Status:      st,
		CompileDate: CompileDate,
		CompileTime: CompileTime,
		Version:     Version,
	})
}

// readings answers from the retained bus snapshot, keeping SensorState
// access inside the sensor loop's own queue discipline.
func (s *Server) readings(w http.ResponseWriter, r *http.Request) {
	msg, ok := s.cfg.Bus.Retained(s.cfg.ReadingsTopic)
	if !ok {
		http.Error(w, "no reading yet", http.StatusNotFound)
		return
	}
	writeJSON(w, msg.Payload)
}

// wifiStatus reports the connectivity coordinator's retained status, letting
// the page poll a connect attempt's outcome.
func (s *Server) wifiStatus(w http.ResponseWriter, r *http.Request) {
	msg, ok := s.cfg.Bus.Retained(s.cfg.WifiTopic)
	if !ok {
		http.Error(w, "no status yet", http.StatusNotFound)
		return
	}
	writeJSON(w, msg.Payload)
}

func (s *Server) wifiConnect(w http.ResponseWriter, r *http.Request) {
	var creds types.Credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&creds); err != nil {
		http.Error(w, errcode.ProtocolViolation.Error(), http.StatusBadRequest)
		return
	}
	if creds.SSID == "" {
		http.Error(w, errcode.InvalidParams.Error(), http.StatusBadRequest)
		return
	}
	if s.cfg.Connect == nil || !s.cfg.Connect(creds) {
		// Full command queue: a recoverable drop, not a fatal error.
		s.log.Warn("httpd: connect request dropped", slog.String("ssid", creds.SSID))
		http.Error(w, errcode.QueueFull.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
