package hooks

import (
	"encoding/json"
	"fmt"
	"io"
)

// Events lists the hook events Handle understands.
var Events = []string{"inventory", "event", "frame"}

// Handle reads HookInput from stdin, forwards it to the server for the
// given event, and writes the server's JSON response to stdout. A server
// that is down is not an error: the hook exits silently so the calling
// tool never blocks on psyche.
func Handle(client *Client, event string, stdin io.Reader, stdout io.Writer) error {
	var input HookInput
	if err := json.NewDecoder(stdin).Decode(&input); err != nil {
		return fmt.Errorf("decode stdin: %w", err)
	}

	path, body, err := route(event, &input)
	if err != nil {
		return err
	}

	if !client.Healthy() {
		return nil
	}

	resp, err := client.Post(path, body)
	if err != nil {
		return err
	}
	_, err = stdout.Write(resp)
	return err
}

// route maps an event to the server path and request body.
func route(event string, input *HookInput) (string, []byte, error) {
	switch event {
	case "inventory":
		// Inventory changed: recompute the object influence.
		path, err := input.characterPath("/influence")
		return path, nil, err
	case "event":
		if input.Source == "" {
			return "", nil, fmt.Errorf("source required")
		}
		body, err := json.Marshal(map[string]any{
			"source":     input.Source,
			"event_type": input.EventType,
			"intensity":  input.Intensity,
		})
		return "/api/events", body, err
	case "frame":
		path, err := input.characterPath("/frames")
		if err != nil {
			return "", nil, err
		}
		body, err := json.Marshal(map[string]float64{"p": input.P, "a": input.A, "d": input.D})
		return path, body, err
	default:
		return "", nil, fmt.Errorf("unknown hook event: %s", event)
	}
}
