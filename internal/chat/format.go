package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lakshmanmandapati/tensora/internal/models"
	"github.com/lakshmanmandapati/tensora/internal/transport"
)

// FormatPlanMessage renders a tool-mode response as the markdown summary
// shown on a plan message awaiting confirmation.
func FormatPlanMessage(resp *transport.Response) string {
	var b strings.Builder

	plan := resp.Plan
	if plan == "" {
		plan = "AI generated plan"
	}
	fmt.Fprintf(&b, "**Plan:** %s\n\n", plan)
	if resp.Confidence > 0 {
		fmt.Fprintf(&b, "**Confidence:** %g%%\n\n", resp.Confidence)
	}

	if len(resp.Actions) == 0 {
		b.WriteString("\n*No specific actions required for this request.*")
		return b.String()
	}

	b.WriteString("**Proposed Actions:**")
	for i, act := range resp.Actions {
		reasoning := act.Reasoning
		if reasoning == "" {
			reasoning = "No reasoning provided"
		}
		params, _ := json.Marshal(act.Parameters)
		if act.Parameters == nil {
			params = []byte("{}")
		}
		fmt.Fprintf(&b, "\n\n**%d. %s**\n   - **Reasoning:** %s\n   - **Parameters:** `%s`", i+1, act.Tool, reasoning, params)
	}
	b.WriteString("\n\nShall I proceed with execution?")
	return b.String()
}

// FormatExecutionResults renders the per-action outcome list. The backend
// is authoritative about which actions it attempted; nothing is fabricated
// for proposed actions it skipped.
func FormatExecutionResults(results []models.ActionResult, plan string) string {
	var b strings.Builder
	b.WriteString("**Execution Results:**\n\n")
	if plan != "" {
		fmt.Fprintf(&b, "**Original Plan:** %s\n\n", plan)
	}

	entries := make([]string, 0, len(results))
	for i, res := range results {
		marker := "❌ Failed"
		if res.Success {
			marker = "✅ Success"
		}
		var e strings.Builder
		fmt.Fprintf(&e, "**%d. %s** - %s\n", i+1, res.Action, marker)
		if res.Success && res.Result != nil {
			e.WriteString(formatResultPayload(res.Result))
		}
		if res.Error != "" {
			fmt.Fprintf(&e, "   - **Error:** %s\n", res.Error)
		}
		entries = append(entries, e.String())
	}
	b.WriteString(strings.Join(entries, "\n"))
	return b.String()
}

func formatResultPayload(result any) string {
	switch v := result.(type) {
	case string:
		return fmt.Sprintf("   - **Result:** %s\n", v)
	case map[string]any:
		if output, ok := v["output"]; ok {
			data, _ := json.MarshalIndent(output, "", "  ")
			return fmt.Sprintf("   - **Output:** %s\n", data)
		}
		data, _ := json.MarshalIndent(v, "", "  ")
		return fmt.Sprintf("   - **Result:** %s\n", data)
	default:
		data, _ := json.Marshal(v)
		return fmt.Sprintf("   - **Result:** %s\n", data)
	}
}
