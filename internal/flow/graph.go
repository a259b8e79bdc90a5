// Package flow implements the conversation flow engine for the loan status
// agent: the declarative flow graph and the turn interpreter that walks it.
package flow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// StartState is the designated entry node of every flow graph.
const StartState = "start"

// NodeKind is the closed set of node behaviors, decided once at graph load
// time so the interpreter dispatches on a single tag instead of probing for
// field presence.
type NodeKind int

const (
	// KindAction performs a side-effecting operation (lookup, transfer,
	// goodbye generation).
	KindAction NodeKind = iota
	// KindDecision routes free text to one of several successor states.
	KindDecision
	// KindPrompt only speaks; with a next it chains, without one it repeats.
	KindPrompt
	// KindTerminal speaks its closing prompt and ends the call.
	KindTerminal
)

// String returns a readable name for logging.
func (k NodeKind) String() string {
	switch k {
	case KindAction:
		return "action"
	case KindDecision:
		return "decision"
	case KindPrompt:
		return "prompt"
	case KindTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// ActionType is the closed enumeration of side-effecting node actions.
type ActionType string

const (
	// ActionVerifyPhone collects a phone number from the caller's utterance
	// and looks up the loan record.
	ActionVerifyPhone ActionType = "verify_phone"
	// ActionCollectPhoneKeypad collects exactly ten digits entered on a
	// keypad; the successor node performs the lookup.
	ActionCollectPhoneKeypad ActionType = "collect_phone_keypad"
	// ActionVerifyCallerID looks up the loan record under the caller id.
	ActionVerifyCallerID ActionType = "verify_phone_from_caller_id"
	// ActionLookupPhone looks up the loan record under the phone number
	// already collected earlier in the call.
	ActionLookupPhone ActionType = "lookup_phone"
	// ActionTransferToAgent hands the call to a human agent and ends it.
	ActionTransferToAgent ActionType = "transfer_to_agent"
	// ActionGenerateGoodbye generates a goodbye message and ends the call.
	ActionGenerateGoodbye ActionType = "generate_goodbye"
	// ActionGoodbyeAfterSMS sends the status SMS, then generates a goodbye
	// and ends the call.
	ActionGoodbyeAfterSMS ActionType = "llm_goodbye_after_sms"
)

// lookupActions are the actions whose nodes need on_success/on_failure.
func (a ActionType) performsLookup() bool {
	switch a {
	case ActionVerifyPhone, ActionVerifyCallerID, ActionLookupPhone:
		return true
	}
	return false
}

func validActionType(a ActionType) bool {
	switch a {
	case ActionVerifyPhone, ActionCollectPhoneKeypad, ActionVerifyCallerID,
		ActionLookupPhone, ActionTransferToAgent, ActionGenerateGoodbye,
		ActionGoodbyeAfterSMS:
		return true
	}
	return false
}

// Choices is an ordered mapping from a free-text-routable label to a
// successor state. Order matters: clarification messages list the labels in
// declaration order, so JSON decoding preserves object key order.
type Choices struct {
	labels []string
	next   map[string]string
}

// NewChoices builds a Choices from alternating label/successor pairs,
// preserving the given order. Used by tests and programmatic graphs.
func NewChoices(pairs ...string) *Choices {
	c := &Choices{next: make(map[string]string)}
	for i := 0; i+1 < len(pairs); i += 2 {
		c.add(pairs[i], pairs[i+1])
	}
	return c
}

func (c *Choices) add(label, successor string) {
	if _, exists := c.next[label]; !exists {
		c.labels = append(c.labels, label)
	}
	c.next[label] = successor
}

// Labels returns the routable labels in declaration order.
func (c *Choices) Labels() []string {
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// Next returns the successor state for label.
func (c *Choices) Next(label string) (string, bool) {
	successor, ok := c.next[label]
	return successor, ok
}

// Len returns the number of choices.
func (c *Choices) Len() int {
	return len(c.labels)
}

// UnmarshalJSON decodes a JSON object token by token so the label order in
// the flow file survives decoding (a plain map would lose it).
func (c *Choices) UnmarshalJSON(data []byte) error {
	c.labels = nil
	c.next = make(map[string]string)

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("allowed_actions must be a JSON object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		label, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("allowed_actions key must be a string")
		}
		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		successor, ok := valTok.(string)
		if !ok {
			return fmt.Errorf("allowed_actions value for %q must be a state name", label)
		}
		c.add(label, successor)
	}
	return nil
}

// MarshalJSON emits the choices as a JSON object in declaration order.
func (c *Choices) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, label := range c.labels {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(label)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.next[label])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// nodeSpec is the on-disk shape of one flow node.
type nodeSpec struct {
	Prompt         string   `json:"prompt,omitempty"`
	Action         string   `json:"action,omitempty"`
	Next           string   `json:"next,omitempty"`
	OnSuccess      string   `json:"on_success,omitempty"`
	OnFailure      string   `json:"on_failure,omitempty"`
	AllowedActions *Choices `json:"allowed_actions,omitempty"`
	End            bool     `json:"end,omitempty"`
}

// Node is one resolved state of the flow graph.
type Node struct {
	Name      string
	Kind      NodeKind
	Action    ActionType
	Prompt    string
	Next      string
	OnSuccess string
	OnFailure string
	Choices   *Choices
	End       bool
}

// Graph is the immutable, load-once conversation flow. It is shared without
// locking across all sessions; nothing mutates it after Parse returns.
type Graph struct {
	nodes map[string]*Node
}

// LoadFile reads and parses a flow graph from a JSON file. A malformed or
// inconsistent graph is a configuration error; the caller should refuse to
// start rather than fail lazily mid-conversation.
func LoadFile(path string) (*Graph, error) {
	slog.Debug("flow.LoadFile: loading flow graph", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file %s: %w", path, err)
	}
	g, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid flow file %s: %w", path, err)
	}
	slog.Info("flow.LoadFile: flow graph loaded", "path", path, "states", g.Len())
	return g, nil
}

// Parse decodes and validates a flow graph from JSON.
func Parse(data []byte) (*Graph, error) {
	var specs map[string]*nodeSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to decode flow graph: %w", err)
	}

	g := &Graph{nodes: make(map[string]*Node, len(specs))}
	for name, spec := range specs {
		node, err := resolveNode(name, spec)
		if err != nil {
			return nil, err
		}
		g.nodes[name] = node
	}

	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// resolveNode decides the node's kind once, so dispatch never has to probe
// field combinations at runtime.
func resolveNode(name string, spec *nodeSpec) (*Node, error) {
	if spec == nil {
		return nil, fmt.Errorf("state %q: node definition is empty", name)
	}

	node := &Node{
		Name:      name,
		Action:    ActionType(spec.Action),
		Prompt:    spec.Prompt,
		Next:      spec.Next,
		OnSuccess: spec.OnSuccess,
		OnFailure: spec.OnFailure,
		Choices:   spec.AllowedActions,
		End:       spec.End,
	}

	hasAction := spec.Action != ""
	hasChoices := spec.AllowedActions != nil && spec.AllowedActions.Len() > 0

	switch {
	case hasAction && hasChoices:
		return nil, fmt.Errorf("state %q: node has both action and allowed_actions", name)
	case hasAction:
		if !validActionType(node.Action) {
			return nil, fmt.Errorf("state %q: unknown action %q", name, spec.Action)
		}
		if node.Action.performsLookup() && (spec.OnSuccess == "" || spec.OnFailure == "") {
			return nil, fmt.Errorf("state %q: action %q requires on_success and on_failure", name, spec.Action)
		}
		if node.Action == ActionCollectPhoneKeypad && spec.OnSuccess == "" {
			return nil, fmt.Errorf("state %q: action %q requires on_success", name, spec.Action)
		}
		node.Kind = KindAction
	case hasChoices:
		node.Kind = KindDecision
	case spec.End:
		node.Kind = KindTerminal
	case spec.Prompt != "":
		node.Kind = KindPrompt
	default:
		return nil, fmt.Errorf("state %q: node has no prompt, action, allowed_actions, or end flag", name)
	}

	return node, nil
}

// validate checks graph-wide invariants: the start state exists and every
// referenced successor is a real state.
func (g *Graph) validate() error {
	if _, ok := g.nodes[StartState]; !ok {
		return fmt.Errorf("flow graph has no %q state", StartState)
	}
	for name, node := range g.nodes {
		for _, successor := range g.successors(node) {
			if _, ok := g.nodes[successor]; !ok {
				return fmt.Errorf("state %q references unknown state %q", name, successor)
			}
		}
	}
	return nil
}

func (g *Graph) successors(node *Node) []string {
	var out []string
	for _, s := range []string{node.Next, node.OnSuccess, node.OnFailure} {
		if s != "" {
			out = append(out, s)
		}
	}
	if node.Choices != nil {
		for _, label := range node.Choices.Labels() {
			successor, _ := node.Choices.Next(label)
			out = append(out, successor)
		}
	}
	return out
}

// Node returns the node for a state name.
func (g *Graph) Node(name string) (*Node, bool) {
	node, ok := g.nodes[name]
	return node, ok
}

// Has reports whether the state name exists in the graph.
func (g *Graph) Has(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Len returns the number of states in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}
