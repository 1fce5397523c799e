package types

// ------------------------
// Connectivity events (radio -> coordinator)
// ------------------------

type WifiEventKind uint8

const (
	EventAPStarted WifiEventKind = iota
	EventAPStopped
	EventStaConnecting
	EventStaConnected
	EventStaDisconnected
	EventStaGotIP
)

func (k WifiEventKind) String() string {
	switch k {
	case EventAPStarted:
		return "ap_started"
	case EventAPStopped:
		return "ap_stopped"
	case EventStaConnecting:
		return "sta_connecting"
	case EventStaConnected:
		return "sta_connected"
	case EventStaDisconnected:
		return "sta_disconnected"
	case EventStaGotIP:
		return "sta_got_ip"
	default:
		return "unknown"
	}
}

// WifiEvent is produced by the network stack and consumed exactly once by
// the connectivity coordinator.
type WifiEvent struct {
	Kind WifiEventKind
	Addr string // lease, set for EventStaGotIP
}

// ------------------------
// Commands (coordinator mailbox)
// ------------------------

type WifiCommandKind uint8

const (
	CmdStartHTTPServer WifiCommandKind = iota
	CmdStaConnect
	CmdStaConnectedGotIP
)

func (k WifiCommandKind) String() string {
	switch k {
	case CmdStartHTTPServer:
		return "start_http_server"
	case CmdStaConnect:
		return "sta_connect"
	case CmdStaConnectedGotIP:
		return "sta_connected_got_ip"
	default:
		return "unknown"
	}
}

// WifiCommand flows through the coordinator's bounded FIFO mailbox.
// Producers may be the radio event handler or the HTTP layer.
type WifiCommand struct {
	Kind  WifiCommandKind
	Creds Credentials // set for CmdStaConnect
	Addr  string      // set for CmdStaConnectedGotIP
}

// Credentials for the station role.
type Credentials struct {
	SSID       string `json:"ssid"`
	Passphrase string `json:"passphrase"`
}

// ------------------------
// Coordinator state (retained on the bus)
// ------------------------

type WifiRole string

const (
	RoleAPOnly       WifiRole = "ap_only"
	RoleAPConnecting WifiRole = "ap_connecting"
	RoleAPConnected  WifiRole = "ap_connected"
)

type WifiStatus struct {
	Role WifiRole `json:"role"`
	SSID string   `json:"ssid,omitempty"` // station-side SSID when joined
	Addr string   `json:"addr,omitempty"` // station-side lease when joined
	TsMs int64    `json:"ts_ms"`
}

// APConfig is the static address block the access point broadcasts with.
type APConfig struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
	Channel  int    `json:"channel"`
	Hidden   bool   `json:"hidden"`
	MaxConns int    `json:"max_conns"`
	Addr     string `json:"addr"`
	Gateway  string `json:"gateway"`
	Netmask  string `json:"netmask"`
}
