package hooks

import (
	"fmt"
	"net/url"
)

// HookInput is the JSON a collaborator writes on stdin. All fields are
// optional; different events read different subsets.
type HookInput struct {
	// inventory, frame
	CharacterID string `json:"character_id,omitempty"`

	// event
	Source    string  `json:"source,omitempty"`
	EventType string  `json:"event_type,omitempty"`
	Intensity float64 `json:"intensity,omitempty"`

	// frame
	P float64 `json:"p,omitempty"`
	A float64 `json:"a,omitempty"`
	D float64 `json:"d,omitempty"`
}

func (h *HookInput) characterPath(suffix string) (string, error) {
	if h.CharacterID == "" {
		return "", fmt.Errorf("character_id required")
	}
	return "/api/characters/" + url.PathEscape(h.CharacterID) + suffix, nil
}
