package conversation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrNoRoot is returned when a mapping has no nodes to start a walk from.
var ErrNoRoot = errors.New("no root node")

// Node is one entry of an exported message tree.
type Node struct {
	Parent   *string         `json:"parent"`
	Children []string        `json:"children"`
	Message  json.RawMessage `json:"message"`

	malformed bool
}

// Mapping is the node-id keyed message tree of a conversation. Nodes keep
// the order in which their keys appear in the export, which decides the
// root when more than one node (or none) has a null parent.
type Mapping struct {
	order []string
	nodes map[string]Node
}

// NewMapping builds a mapping from id/node pairs, preserving argument order.
func NewMapping(entries ...MappingEntry) Mapping {
	m := Mapping{nodes: make(map[string]Node, len(entries))}
	for _, e := range entries {
		m.add(e.ID, e.Node)
	}
	return m
}

// MappingEntry pairs a node with its id for NewMapping.
type MappingEntry struct {
	ID   string
	Node Node
}

// Len returns the number of nodes in the mapping.
func (m Mapping) Len() int { return len(m.order) }

func (m *Mapping) add(id string, n Node) {
	if m.nodes == nil {
		m.nodes = make(map[string]Node)
	}
	if _, exists := m.nodes[id]; !exists {
		m.order = append(m.order, id)
	}
	m.nodes[id] = n
}

// UnmarshalJSON decodes the mapping object key by key. A node whose value
// does not decode is kept as a dead end so the rest of the tree survives.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("mapping: %w", err)
	}
	if tok == nil {
		*m = Mapping{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("mapping: expected object, got %v", tok)
	}

	out := Mapping{nodes: make(map[string]Node)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("mapping key: %w", err)
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("mapping node %q: %w", key, err)
		}
		var n Node
		if err := json.Unmarshal(raw, &n); err != nil {
			n = Node{malformed: true}
		}
		out.add(key, n)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("mapping: %w", err)
	}

	*m = out
	return nil
}

// Reconstruct walks the primary path of the tree and returns its messages in order.
//
// The walk starts at the first node with a null parent (or the first node
// when none has one) and always follows the first child. It stops at a
// leaf, at a dangling child id, or as soon as a node would be revisited.
func Reconstruct(m Mapping) ([]Message, error) {
	root, ok := m.root()
	if !ok {
		return nil, ErrNoRoot
	}

	var msgs []Message
	visited := make(map[string]struct{}, len(m.order))
	for current := root; current != ""; {
		if _, seen := visited[current]; seen {
			break
		}
		visited[current] = struct{}{}

		node, ok := m.nodes[current]
		if !ok {
			break
		}
		if msg, ok := resolveMessage(node.Message); ok {
			msgs = append(msgs, msg)
		}

		current = ""
		if len(node.Children) > 0 {
			current = node.Children[0]
		}
	}
	return msgs, nil
}

func (m Mapping) root() (string, bool) {
	if len(m.order) == 0 {
		return "", false
	}
	for _, id := range m.order {
		n := m.nodes[id]
		if !n.malformed && n.Parent == nil {
			return id, true
		}
	}
	return m.order[0], true
}

type rawMessage struct {
	ID     string `json:"id"`
	Author *struct {
		Role string `json:"role"`
	} `json:"author"`
	CreateTime *float64 `json:"create_time"`
	Content    *struct {
		ContentType string            `json:"content_type"`
		Parts       []json.RawMessage `json:"parts"`
	} `json:"content"`
}

type rawPart struct {
	ContentType string  `json:"content_type"`
	Text        *string `json:"text"`
}

// resolveMessage turns a node payload into a Message. Anything that is not a
// user or assistant message with non-empty text is skipped.
func resolveMessage(payload json.RawMessage) (Message, bool) {
	if len(payload) == 0 || bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		return Message{}, false
	}
	var raw rawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Message{}, false
	}
	if raw.Author == nil || raw.Content == nil {
		return Message{}, false
	}
	role := Role(raw.Author.Role)
	if role != RoleUser && role != RoleAssistant {
		return Message{}, false
	}

	text := partsText(raw.Content.Parts)
	if text == "" {
		return Message{}, false
	}
	return Message{
		Role:      role,
		Content:   text,
		CreatedAt: epochTime(raw.CreateTime),
		ID:        raw.ID,
	}, true
}

func partsText(parts []json.RawMessage) string {
	var texts []string
	for _, p := range parts {
		var s string
		if err := json.Unmarshal(p, &s); err == nil {
			texts = append(texts, s)
			continue
		}
		var obj rawPart
		if err := json.Unmarshal(p, &obj); err != nil || obj.Text == nil {
			continue // image pointers and other non-text parts
		}
		if obj.ContentType == "audio_transcription" && *obj.Text == "" {
			continue
		}
		texts = append(texts, *obj.Text)
	}
	return strings.TrimSpace(strings.Join(texts, " "))
}

// epochTime converts export timestamps (fractional unix seconds) to UTC time.
func epochTime(ts *float64) time.Time {
	if ts == nil || *ts <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(*ts)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
