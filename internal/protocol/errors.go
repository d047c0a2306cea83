package protocol

// Denial reasons. Rejections are silent on the wire (anti-cheat posture);
// these codes appear only in the audit log and the runtime index.
const (
	DenyOutOfBounds = "D_OUT_OF_BOUNDS"
	DenyDistance    = "D_DISTANCE"
	DenyArea        = "D_AREA"
	DenyNoResource  = "D_NO_RESOURCE"
	DenyRateLimit   = "D_RATE_LIMIT"
	DenyOccupied    = "D_OCCUPIED"
	DenyObjective   = "D_OBJECTIVE"
	DenyBedrock     = "D_BEDROCK"
	DenyTool        = "D_TOOL"
	DenyWeapon      = "D_WEAPON"
	DenyNoBlock     = "D_NO_BLOCK"
	DenyVetoed      = "D_VETOED"
)

var knownDenials = map[string]struct{}{
	DenyOutOfBounds: {},
	DenyDistance:    {},
	DenyArea:        {},
	DenyNoResource:  {},
	DenyRateLimit:   {},
	DenyOccupied:    {},
	DenyObjective:   {},
	DenyBedrock:     {},
	DenyTool:        {},
	DenyWeapon:      {},
	DenyNoBlock:     {},
	DenyVetoed:      {},
}

// IsKnownDenial reports whether code is one of the audit denial codes above.
// The empty string passes so an unset filter is not an error.
func IsKnownDenial(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownDenials[code]
	return ok
}
