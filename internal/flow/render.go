package flow

import (
	"strings"

	"github.com/ruthvika-mohan/loan-status-agent/internal/models"
)

// RenderPrompt substitutes session-derived values into a node's template
// text. Only a fixed set of placeholders is supported; there is no
// expression evaluation.
func RenderPrompt(node *Node, sess *models.Session) string {
	prompt := node.Prompt

	if strings.Contains(prompt, "{{status}}") {
		status := sess.LoanStatus
		if status == "" {
			status = models.StatusUnknown
		}
		prompt = strings.ReplaceAll(prompt, "{{status}}", status)
	}
	if strings.Contains(prompt, "{{phone}}") {
		prompt = strings.ReplaceAll(prompt, "{{phone}}", sess.Phone)
	}

	return prompt
}
