package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	PlayerName      string            `json:"player_name"`
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	PlayerID        uint8       `json:"player_id"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	Width    int   `json:"width"`
	Depth    int   `json:"depth"`
	Height   int   `json:"height"`
	BedrockZ int   `json:"bedrock_z"`
	Seed     int64 `json:"seed"`
}

// MAP_PART (server -> client): one slab of the zstd-compressed terrain
// transfer. Parts arrive in column order; Last marks the final part, after
// which buffered BLOCK_UPDATEs (edits made mid-transfer) are replayed.
type MapPart struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Part            int    `json:"part"`
	Last            bool   `json:"last"`
	Data            []byte `json:"data"` // zstd frame, base64 on the wire
}

// BLOCK_ACTION (client -> server): a requested terrain edit.
type BlockActionMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Kind            string `json:"kind"`
	Pos             [3]int `json:"pos"`
	Color           uint32 `json:"color,omitempty"` // BUILD only
}

// BLOCK_UPDATE (server -> client): one committed cell change.
type BlockUpdateMsg struct {
	Type   string `json:"type"`
	Action string `json:"action"` // "SET" or "AIR"
	Pos    [3]int `json:"pos"`
	Color  uint32 `json:"color,omitempty"`
	Origin uint8  `json:"origin"`
}

// SET_TOOL (client -> server)
type SetToolMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tool            string `json:"tool"`
}

// SET_COLOR (client -> server): vetoable by extensions, which may also
// rewrite the color before it sticks.
type SetColorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Color           uint32 `json:"color"`
}

// HIT (client -> server)
type HitMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Victim          uint8  `json:"victim"`
	HitType         uint8  `json:"hit_type"` // 0=torso 1=head 2=arms 3=legs 4=melee
	Weapon          uint8  `json:"weapon"`
}

// GRENADE (client -> server): detonation notification.
type GrenadeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Pos             [3]float64 `json:"pos"`
}

// CMD (client -> server): a named command with a raw argument string.
type CmdMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`
	Args            string `json:"args,omitempty"`
}

// NOTICE (server -> client)
type NoticeMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
