package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello       = "HELLO"
	TypeWelcome     = "WELCOME"
	TypeMapPart     = "MAP_PART"
	TypeBlockAction = "BLOCK_ACTION"
	TypeBlockUpdate = "BLOCK_UPDATE"
	TypeSetTool     = "SET_TOOL"
	TypeSetColor    = "SET_COLOR"
	TypeHit         = "HIT"
	TypeGrenade     = "GRENADE"
	TypeCmd         = "CMD"
	TypeNotice      = "NOTICE"
)

// Block action kinds.
const (
	ActionBuild        = "BUILD"
	ActionDestroyOne   = "DESTROY_ONE"
	ActionDestroyThree = "DESTROY_THREE"
)

// Tools.
const (
	ToolSpade   = "SPADE"
	ToolBlock   = "BLOCK"
	ToolGun     = "GUN"
	ToolGrenade = "GRENADE"
)

// ServerOriginID marks block updates not attributable to any real player
// (server- or extension-originated edits). Clients must not charge resource
// changes against it.
const ServerOriginID uint8 = 255

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
