package models

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one entry of a conversation passed to the completion client.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Mode selects the answering style for a single request.
type Mode string

const (
	ModeNormal   Mode = "normal"
	ModeAcademic Mode = "academic"
)

// ParseMode maps the wire value to a Mode. An empty value means normal.
func ParseMode(v string) (Mode, bool) {
	switch Mode(v) {
	case "", ModeNormal:
		return ModeNormal, true
	case ModeAcademic:
		return ModeAcademic, true
	default:
		return "", false
	}
}
