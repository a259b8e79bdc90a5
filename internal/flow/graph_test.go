package flow

import (
	"strings"
	"testing"
)

func TestParse_ResolvesNodeKinds(t *testing.T) {
	graph, err := Parse([]byte(testGraphJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		state string
		kind  NodeKind
	}{
		{"start", KindDecision},
		{"verify_caller_id", KindAction},
		{"collect_phone", KindAction},
		{"status_report", KindDecision},
		{"goodbye", KindAction},
		{"transfer_agent", KindAction},
	}
	for _, tt := range tests {
		node, ok := graph.Node(tt.state)
		if !ok {
			t.Errorf("state %q missing from graph", tt.state)
			continue
		}
		if node.Kind != tt.kind {
			t.Errorf("state %q kind = %v, want %v", tt.state, node.Kind, tt.kind)
		}
	}
}

func TestParse_TerminalNode(t *testing.T) {
	graph, err := Parse([]byte(keypadGraphJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	node, ok := graph.Node("closing")
	if !ok {
		t.Fatal("closing state missing")
	}
	if node.Kind != KindTerminal {
		t.Errorf("kind = %v, want terminal", node.Kind)
	}
}

func TestParse_MissingStart(t *testing.T) {
	_, err := Parse([]byte(`{"other": {"prompt": "hi"}}`))
	if err == nil || !strings.Contains(err.Error(), "start") {
		t.Errorf("expected missing-start error, got %v", err)
	}
}

func TestParse_DanglingReference(t *testing.T) {
	_, err := Parse([]byte(`{"start": {"prompt": "hi", "next": "nowhere"}}`))
	if err == nil || !strings.Contains(err.Error(), "nowhere") {
		t.Errorf("expected dangling-reference error, got %v", err)
	}
}

func TestParse_UnknownAction(t *testing.T) {
	_, err := Parse([]byte(`{"start": {"action": "launch_rocket"}}`))
	if err == nil || !strings.Contains(err.Error(), "launch_rocket") {
		t.Errorf("expected unknown-action error, got %v", err)
	}
}

func TestParse_LookupActionRequiresTransitions(t *testing.T) {
	_, err := Parse([]byte(`{"start": {"action": "verify_phone", "on_success": "start"}}`))
	if err == nil || !strings.Contains(err.Error(), "on_failure") {
		t.Errorf("expected missing-transition error, got %v", err)
	}
}

func TestParse_ActionAndChoicesConflict(t *testing.T) {
	spec := `{"start": {"action": "verify_phone", "on_success": "start", "on_failure": "start", "allowed_actions": {"yes": "start"}}}`
	_, err := Parse([]byte(spec))
	if err == nil || !strings.Contains(err.Error(), "both") {
		t.Errorf("expected action/choices conflict error, got %v", err)
	}
}

func TestParse_EmptyNode(t *testing.T) {
	_, err := Parse([]byte(`{"start": {}}`))
	if err == nil {
		t.Error("expected error for node with no fields")
	}
}

func TestChoices_PreservesDeclarationOrder(t *testing.T) {
	spec := `{"start": {"prompt": "pick", "allowed_actions": {"delta": "start", "alpha": "start", "charlie": "start"}}}`
	graph, err := Parse([]byte(spec))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	node, _ := graph.Node("start")
	got := node.Choices.Labels()
	want := []string{"delta", "alpha", "charlie"}
	if len(got) != len(want) {
		t.Fatalf("labels = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("label[%d] = %q, want %q (declaration order must survive decoding)", i, got[i], want[i])
		}
	}
}

func TestLoadFile_ShippedFlows(t *testing.T) {
	for _, path := range []string{
		"../../flows/loan_status_flow.json",
		"../../flows/loan_status_flow_keypad.json",
	} {
		graph, err := LoadFile(path)
		if err != nil {
			t.Errorf("LoadFile(%q) failed: %v", path, err)
			continue
		}
		if !graph.Has(StartState) {
			t.Errorf("LoadFile(%q): no start state", path)
		}
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	if _, err := LoadFile("does-not-exist.json"); err == nil {
		t.Error("expected error for missing flow file")
	}
}
