package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ruthvika-mohan/loan-status-agent/internal/loans"
	"github.com/ruthvika-mohan/loan-status-agent/internal/models"
	"github.com/ruthvika-mohan/loan-status-agent/internal/util"
)

// Caller-facing text the flow graph cannot override.
const (
	// CallEndedReply is the fixed reply for turns arriving after the call
	// ended. Front ends detect this marker and strip it before playback.
	CallEndedReply = "[Call ended]"

	// TransferReply simulates the hand-off to a human agent.
	TransferReply = "[Transferring call... Hold music plays... Agent picks up]\n" +
		"Agent: Hello, this is the loan department. How can I help you today?"

	// ApologyReply answers turns that hit a graph-authoring defect.
	ApologyReply = "I'm sorry, something went wrong. Please start a new conversation."
)

// MinPhoneDigits is the minimum digit count accepted when the caller speaks
// their phone number.
const MinPhoneDigits = 8

// KeypadPhoneDigits is the exact digit count required for keypad entry.
const KeypadPhoneDigits = 10

// CollaboratorError reports a failure in an external collaborator (intent
// router, responder, loan lookup, SMS delivery). The service boundary
// catches it, discards the partially-mutated session, and apologizes to the
// caller. Terminal marks failures inside call-ending actions, where the
// boundary should still end the call to avoid an unrecoverable loop.
type CollaboratorError struct {
	Op       string
	Terminal bool
	Err      error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// Interpreter walks a session through the flow graph one turn at a time. It
// holds no per-call state itself; every invocation reads and mutates the
// session it is handed. The caller must serialize turns per session.
type Interpreter struct {
	graph  *Graph
	router IntentRouter
	resp   Responder
	lookup loans.Lookup
	sms    SMSSender
}

// NewInterpreter creates a turn interpreter over graph with the given
// collaborators. sms may be nil; the goodbye-after-SMS action then skips
// delivery and only generates the goodbye.
func NewInterpreter(graph *Graph, router IntentRouter, resp Responder, lookup loans.Lookup, sms SMSSender) *Interpreter {
	return &Interpreter{graph: graph, router: router, resp: resp, lookup: lookup, sms: sms}
}

// HandleTurn processes one caller turn: it resolves the current node,
// dispatches on its kind, and auto-advances through non-input-consuming
// nodes until a reply is produced. Auto-advance is a bounded loop, not
// recursion: a cycle that never consumes input is reported as a
// configuration defect instead of exhausting the stack.
//
// The only errors returned are CollaboratorError values; every
// graph-internal condition produces caller-facing text instead.
func (it *Interpreter) HandleTurn(ctx context.Context, utterance string, sess *models.Session) (string, error) {
	input := utterance
	visited := make(map[string]bool)

	for {
		// Terminal guard comes before everything, including caller-id
		// initialization.
		if sess.Ended {
			slog.Debug("Interpreter.HandleTurn: session already ended")
			return CallEndedReply, nil
		}

		if sess.CallerID == "" {
			sess.CallerID = util.GenerateRandomDigits(models.CallerIDDigits)
			slog.Debug("Interpreter.HandleTurn: incoming call", "caller_id", sess.CallerID)
		}

		// Normalize the state and persist the normalization.
		if sess.State == "" || !it.graph.Has(sess.State) {
			sess.State = StartState
		}

		// Auto-advance cycle guard: revisiting a state without consuming
		// fresh input means the graph loops without an input-consuming node.
		if strings.TrimSpace(input) == "" {
			if visited[sess.State] {
				slog.Error("Interpreter.HandleTurn: auto-advance cycle detected", "state", sess.State)
				return ApologyReply, nil
			}
			visited[sess.State] = true
		}

		if sess.State == StartState && !sess.Greeted {
			sess.Greeted = true
			// The greeting doubles as the start node's prompt, so mark the
			// start state as already prompted.
			sess.LastPromptedState = StartState
			return fmt.Sprintf(
				"Hello! I can help you check your loan status. "+
					"I see you're calling from %s. "+
					"Is this the number associated with your loan application?",
				formatCallerID(sess.CallerID)), nil
		}

		node, ok := it.graph.Node(sess.State)
		if !ok {
			// Unreachable after normalization; kept as the safety fallback.
			slog.Error("Interpreter.HandleTurn: state vanished from graph", "state", sess.State)
			return ApologyReply, nil
		}

		reply, advance, err := it.dispatch(ctx, node, input, sess)
		if err != nil {
			return "", err
		}
		if !advance {
			return reply, nil
		}
		input = ""
	}
}

// dispatch runs one node. It returns advance=true when the session
// transitioned and the loop should continue with empty input.
func (it *Interpreter) dispatch(ctx context.Context, node *Node, input string, sess *models.Session) (reply string, advance bool, err error) {
	slog.Debug("Interpreter.dispatch: resolving node", "state", node.Name, "kind", node.Kind.String())

	switch node.Kind {
	case KindAction:
		return it.dispatchAction(ctx, node, input, sess)
	case KindDecision:
		return it.dispatchDecision(ctx, node, input, sess)
	case KindPrompt:
		if node.Next != "" {
			sess.State = node.Next
			return "", true, nil
		}
		return RenderPrompt(node, sess), false, nil
	case KindTerminal:
		sess.Ended = true
		return endedReply(RenderPrompt(node, sess)), false, nil
	default:
		slog.Error("Interpreter.dispatch: unhandled node kind", "state", node.Name, "kind", node.Kind.String())
		return ApologyReply, false, nil
	}
}

func (it *Interpreter) dispatchAction(ctx context.Context, node *Node, input string, sess *models.Session) (string, bool, error) {
	switch node.Action {
	case ActionVerifyPhone:
		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			return RenderPrompt(node, sess), false, nil
		}
		if !isAllDigits(trimmed) || len(trimmed) < MinPhoneDigits {
			slog.Debug("Interpreter.dispatchAction: invalid phone entry, delegating to fallback", "state", node.Name)
			text, err := it.resp.Redirect(ctx, input, *sess)
			if err != nil {
				return "", false, &CollaboratorError{Op: "fallback redirect", Err: err}
			}
			return text, false, nil
		}
		sess.Phone = trimmed
		return "", true, it.lookupAndTransition(ctx, node, trimmed, sess)

	case ActionCollectPhoneKeypad:
		if strings.TrimSpace(input) == "" {
			return RenderPrompt(node, sess), false, nil
		}
		digits := digitsOnly(input)
		if len(digits) != KeypadPhoneDigits {
			reply := fmt.Sprintf("I received %d digits, but I need exactly %d. %s",
				len(digits), KeypadPhoneDigits, RenderPrompt(node, sess))
			return reply, false, nil
		}
		sess.Phone = digits
		sess.State = node.OnSuccess
		return "", true, nil

	case ActionVerifyCallerID:
		sess.Phone = sess.CallerID
		return "", true, it.lookupAndTransition(ctx, node, sess.CallerID, sess)

	case ActionLookupPhone:
		phone := sess.Phone
		if phone == "" {
			phone = sess.CallerID
			sess.Phone = phone
		}
		return "", true, it.lookupAndTransition(ctx, node, phone, sess)

	case ActionTransferToAgent:
		sess.Ended = true
		return endedReply(TransferReply), false, nil

	case ActionGenerateGoodbye:
		text, err := it.resp.Goodbye(ctx, *sess)
		if err != nil {
			return "", false, &CollaboratorError{Op: "goodbye generation", Terminal: true, Err: err}
		}
		sess.Ended = true
		return endedReply(text), false, nil

	case ActionGoodbyeAfterSMS:
		if it.sms != nil {
			if err := it.sms.SendStatusSMS(ctx, sess.Phone, sess.LoanStatus); err != nil {
				// The goodbye still goes out; delivery problems are not the
				// caller's to deal with.
				slog.Error("Interpreter.dispatchAction: status SMS failed", "phone", sess.Phone, "error", err)
			}
		}
		text, err := it.resp.GoodbyeAfterSMS(ctx, *sess)
		if err != nil {
			return "", false, &CollaboratorError{Op: "goodbye generation", Terminal: true, Err: err}
		}
		sess.Ended = true
		return endedReply(text), false, nil

	default:
		slog.Error("Interpreter.dispatchAction: unhandled action", "state", node.Name, "action", string(node.Action))
		return ApologyReply, false, nil
	}
}

func (it *Interpreter) dispatchDecision(ctx context.Context, node *Node, input string, sess *models.Session) (string, bool, error) {
	// First entry into the decision node: prompt once, consume nothing.
	if sess.LastPromptedState != node.Name {
		sess.LastPromptedState = node.Name
		return RenderPrompt(node, sess), false, nil
	}

	if strings.TrimSpace(input) == "" {
		return RenderPrompt(node, sess), false, nil
	}

	labels := node.Choices.Labels()
	label, err := it.router.Route(ctx, input, labels)
	if err != nil {
		return "", false, &CollaboratorError{Op: "intent routing", Err: err}
	}

	if successor, ok := node.Choices.Next(label); ok {
		slog.Debug("Interpreter.dispatchDecision: routed", "state", node.Name, "label", label, "next", successor)
		sess.LastPromptedState = ""
		sess.State = successor
		return "", true, nil
	}

	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = "'" + l + "'"
	}
	return fmt.Sprintf("I didn't quite understand that. Please say %s.",
		strings.Join(quoted, " or ")), false, nil
}

// lookupAndTransition runs the loan lookup for phone and applies the node's
// success/failure transition. Not-found is a business outcome, not an error.
func (it *Interpreter) lookupAndTransition(ctx context.Context, node *Node, phone string, sess *models.Session) error {
	status, err := it.lookup.Status(ctx, phone)
	if err != nil {
		return &CollaboratorError{Op: "loan lookup", Err: err}
	}
	slog.Debug("Interpreter.lookupAndTransition: lookup result", "state", node.Name, "phone", phone, "status", status)

	if status == models.StatusNotFound {
		sess.State = node.OnFailure
	} else {
		sess.LoanStatus = status
		sess.State = node.OnSuccess
	}
	return nil
}

// endedReply appends the terminal marker so voice/text front ends can detect
// end-of-call; they strip it before playback.
func endedReply(text string) string {
	return text + "\n" + CallEndedReply
}

// formatCallerID renders a 10-digit caller id as XXX-XXX-XXXX for speech.
func formatCallerID(callerID string) string {
	if len(callerID) != models.CallerIDDigits {
		return callerID
	}
	return callerID[:3] + "-" + callerID[3:6] + "-" + callerID[6:]
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
