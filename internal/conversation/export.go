package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"thinkr-chatbot/internal/service"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Export is the serialized form of a history.
type Export struct {
	Conversation     []Turn `json:"conversation"`
	ConversationText string `json:"conversation_text"`
	ExportTimestamp  string `json:"export_timestamp"`
	TotalMessages    int    `json:"total_messages"`
}

// Snapshot builds an Export of the current history.
func (h *History) Snapshot() *Export {
	turns := h.Turns()
	return &Export{
		Conversation:     turns,
		ConversationText: FormatTranscript(turns),
		ExportTimestamp:  time.Now().UTC().Format(time.RFC3339),
		TotalMessages:    2 * len(turns),
	}
}

// Export renders the history as JSON or as a plain text transcript.
// Only the JSON form can be imported back.
func (h *History) Export(format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		data, err := json.MarshalIndent(h.Snapshot(), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode conversation: %w", err)
		}
		return data, nil
	case FormatText:
		return []byte(FormatTranscript(h.Turns())), nil
	default:
		return nil, &service.ValidationError{Field: "format", Message: fmt.Sprintf("unsupported export format %q (use json or text)", format)}
	}
}

// Import replaces the history with the turns of a JSON export.
func (h *History) Import(ctx context.Context, data []byte) error {
	var exp Export
	if err := json.Unmarshal(data, &exp); err != nil {
		return &service.ValidationError{Field: "conversation", Message: fmt.Sprintf("invalid conversation export: %v", err)}
	}
	for i, t := range exp.Conversation {
		if strings.TrimSpace(t.Question) == "" {
			return &service.ValidationError{Field: "conversation", Message: fmt.Sprintf("turn %d has an empty question", i)}
		}
	}
	return h.Replace(ctx, exp.Conversation)
}

// FormatTranscript renders turns as "User:" / "Assistant:" pairs.
func FormatTranscript(turns []Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s]\n", t.Timestamp.Format(time.RFC3339))
		fmt.Fprintf(&b, "User: %s\n", t.Question)
		fmt.Fprintf(&b, "Assistant: %s\n", t.Answer)
	}
	return b.String()
}
