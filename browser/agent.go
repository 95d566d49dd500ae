package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/use-agent/llmbait/llm"
	"github.com/use-agent/llmbait/models"
)

// Completer answers a system + user exchange with a JSON document.
// *llm.Client satisfies it.
type Completer interface {
	CompleteJSON(ctx context.Context, system, user string) (json.RawMessage, *llm.Usage, error)
}

// Element is one interactive element of the page as reported by
// collectElementsScript.
type Element struct {
	Index       int    `json:"index"`
	Selector    string `json:"selector"`
	Tag         string `json:"tag"`
	Role        string `json:"role,omitempty"`
	Type        string `json:"type,omitempty"`
	Text        string `json:"text,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Href        string `json:"href,omitempty"`
	Marker      string `json:"marker,omitempty"`
}

// Action methods an agent may choose.
const (
	MethodClick = "click"
	MethodFill  = "fill"
	MethodPress = "press"
)

// Decision is the element and method the model picked. Index is -1 when no
// element fits the instruction.
type Decision struct {
	Index       int
	Method      string
	Argument    string
	Description string
}

// decisionAnswer is the model's raw answer. A missing or null index means
// no element was picked.
type decisionAnswer struct {
	Index       *int   `json:"index"`
	Method      string `json:"method"`
	Argument    string `json:"argument"`
	Description string `json:"description"`
}

// Agent turns natural-language page instructions into model calls.
type Agent struct {
	llm Completer
}

// NewAgent wraps completer.
func NewAgent(completer Completer) *Agent {
	return &Agent{llm: completer}
}

const extractSystemPrompt = `You read a snapshot of a web page and extract structured data from it.

Return ONLY a JSON object that validates against this JSON schema:
%s

Rules:
- Use only information present in the snapshot.
- Copy attribute values such as data-result-id exactly as written, character for character.
- Omit optional fields that are absent from the page.`

const chooseSystemPrompt = `You operate a web browser on behalf of an agent.
You receive an instruction and a numbered list of the interactive elements on the current page.
Pick the single element that best satisfies the instruction.

Return ONLY a JSON object:
{"index": <element index or -1>, "method": "click" | "fill" | "press", "argument": "<text to type or key to press>", "description": "<short reason>"}

Rules:
- Use "fill" with the exact text to type when the instruction asks to type.
- Use "press" with a key name such as "Enter" when the instruction asks to press a key.
- Use index -1 when no element fits.`

// Extract asks the model for a document matching schema from snapshot.
func (a *Agent) Extract(ctx context.Context, instruction string, schema json.RawMessage, snapshot string) (json.RawMessage, error) {
	system := fmt.Sprintf(extractSystemPrompt, string(schema))
	user := fmt.Sprintf("Instruction: %s\n\nPage snapshot:\n%s", instruction, snapshot)
	raw, _, err := a.llm.CompleteJSON(ctx, system, user)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Choose asks the model which element satisfies instruction.
func (a *Agent) Choose(ctx context.Context, instruction string, elements []Element) (Decision, error) {
	if len(elements) == 0 {
		return Decision{Index: -1}, nil
	}
	raw, _, err := a.llm.CompleteJSON(ctx, chooseSystemPrompt, renderElements(instruction, elements))
	if err != nil {
		return Decision{}, err
	}
	return parseDecision(raw, len(elements))
}

func renderElements(instruction string, elements []Element) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Instruction: %s\n\nElements:\n", instruction)
	if len(elements) == 0 {
		b.WriteString("(none)\n")
	}
	for _, el := range elements {
		fmt.Fprintf(&b, "[%d] <%s", el.Index, el.Tag)
		if el.Role != "" {
			fmt.Fprintf(&b, " role=%q", el.Role)
		}
		if el.Type != "" {
			fmt.Fprintf(&b, " type=%q", el.Type)
		}
		if el.Placeholder != "" {
			fmt.Fprintf(&b, " placeholder=%q", el.Placeholder)
		}
		if el.Href != "" {
			fmt.Fprintf(&b, " href=%q", el.Href)
		}
		fmt.Fprintf(&b, "> %s\n", el.Text)
	}
	return b.String()
}

// parseDecision validates the model's answer against n candidates. An
// answer without an index, a negative index or an empty candidate list
// yields Index -1.
func parseDecision(raw json.RawMessage, n int) (Decision, error) {
	var ans decisionAnswer
	if err := json.Unmarshal(raw, &ans); err != nil {
		return Decision{}, models.NewSearchError(models.ErrCodeLLMFailure, "undecodable element choice", err)
	}
	if ans.Index == nil || *ans.Index < 0 || n == 0 {
		return Decision{Index: -1}, nil
	}
	if *ans.Index >= n {
		return Decision{}, models.NewSearchError(models.ErrCodeLLMFailure,
			fmt.Sprintf("element choice %d out of range (%d candidates)", *ans.Index, n), nil)
	}

	d := Decision{
		Index:       *ans.Index,
		Method:      strings.ToLower(strings.TrimSpace(ans.Method)),
		Argument:    ans.Argument,
		Description: ans.Description,
	}
	switch d.Method {
	case MethodClick, MethodFill, MethodPress:
	case "":
		d.Method = MethodClick
	case "type", "input":
		d.Method = MethodFill
	default:
		return Decision{}, models.NewSearchError(models.ErrCodeLLMFailure,
			fmt.Sprintf("unsupported method %q", d.Method), nil)
	}
	return d, nil
}
