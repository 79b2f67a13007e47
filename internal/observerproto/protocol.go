package observerproto

// Version is the observer protocol version.
const Version = "1"

// Client -> Server. First message on the observer WS connection; it can be
// re-sent to change the region.
type SubscribeMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Region          *Region `json:"region,omitempty"`
}

// Region is an inclusive board rectangle. A nil region means the whole board.
type Region struct {
	MinX int `json:"min_x"`
	MinY int `json:"min_y"`
	MaxX int `json:"max_x"`
	MaxY int `json:"max_y"`
}

func (r *Region) Contains(x, y int) bool {
	if r == nil {
		return true
	}
	return x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY
}

// HTTP response for GET /v1/observe/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string     `json:"protocol_version"`
	Tick            uint64     `json:"tick"`
	TickMs          int64      `json:"tick_ms"`
	CatalogDigest   string     `json:"catalog_digest"`
	NodeTypes       []TypeInfo `json:"node_types"`
}

type TypeInfo struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Variants []string `json:"variants"`
}

// Server -> Client. Sent after every tick, latest wins per client.
type FrameMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	Digest          string      `json:"digest"`
	Fired           int         `json:"fired"`
	Nodes           []NodeState `json:"nodes"`
}

type NodeState struct {
	ID       uint64 `json:"id"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Type     int    `json:"type"`
	Rotation int    `json:"rotation"`
	Glyph    string `json:"glyph"`
	State    string `json:"state"`
}

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeFrame     = "FRAME"
)
