package parley

import "strings"

// Channel name bounds enforced by the server. The client checks them
// before submitting so obvious mistakes never leave the machine.
const (
	ChannelNameMin = 3
	ChannelNameMax = 20
)

// Channel contains a chat centered around a specific topic. Identity is
// stable; the name may change. Channels marked not removable are seeded
// by the server and survive for the life of the workspace.
type Channel struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Removable bool   `json:"removable"`
}

// ValidateChannelName checks a candidate name against the length rule and
// against names already taken, case-insensitively. The server performs the
// same checks and is the authority; this exists so the UI can reject bad
// input before a request is made.
func ValidateChannelName(name string, taken []*Channel) error {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < ChannelNameMin || len(trimmed) > ChannelNameMax {
		return NewValidationError("channel name must be 3 to 20 characters")
	}

	for _, ch := range taken {
		if strings.EqualFold(ch.Name, trimmed) {
			return NewConflictError("a channel with that name already exists")
		}
	}

	return nil
}
