package domain

import "strings"

const (
	WinnerAttackers = "attackers"
	WinnerDefenders = "defenders"
	WinnerDraw      = "draw"
)

// Participant is one side entry of a classified combat report.
type Participant struct {
	Ships    map[string]int64 `cbor:"ships" json:"ships"`
	Defenses map[string]int64 `cbor:"defenses,omitempty" json:"defenses,omitempty"`
}

// ParticipantName strips the trailing "[g:s:p]" coordinate that report titles
// attach to participant names.
func ParticipantName(key string) string {
	key = strings.TrimSpace(key)
	if i := strings.LastIndex(key, "["); i > 0 && strings.HasSuffix(key, "]") {
		key = strings.TrimSpace(key[:i])
	}
	return key
}
