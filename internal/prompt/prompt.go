// Package prompt assembles the messages sent to the completion API.
// Everything here is a pure function of its input.
package prompt

import (
	"fmt"
	"strings"

	"thinkr-chatbot/internal/conversation"
	"thinkr-chatbot/internal/llm"
	"thinkr-chatbot/internal/service"
)

// SystemPrompt is the fixed instruction for the R tutor.
const SystemPrompt = `You are a friendly R tutor at ThinkNeuro LLC. Your role is to help students learn R programming effectively.

Key responsibilities:
1. **Answer R Programming Questions**: Provide clear, accurate explanations of R concepts, syntax, and best practices
2. **Reference Course Material**: When relevant, refer to specific modules, sections, or timestamps from the course material
3. **Provide Code Examples**: Give practical, runnable R code examples when appropriate
4. **Encourage Learning**: Foster a supportive learning environment
5. **Correct Misconceptions**: Gently correct misunderstandings about R programming

Response format:
- **General Answer**: Provide a comprehensive, educational response
- **Module Reference**: If applicable, reference specific course modules with timestamps
- **Code Examples**: Include relevant R code snippets when helpful
- **Next Steps**: Suggest related topics or practice exercises when appropriate

Be encouraging and patient, use clear language, and ground answers in the course material when it is provided.

Context from course materials will be provided to help you give more accurate and relevant responses.`

// ContextChunk is a retrieved chunk ready to be shown to the model.
type ContextChunk struct {
	Module    string
	Source    string
	Page      int
	Timestamp string
	Score     float64
	Text      string
}

// Input is everything Build needs.
type Input struct {
	Question string
	Context  []ContextChunk
	History  []conversation.Turn
}

// Build returns the system message, the history as alternating user/assistant
// messages, and the final user message. Chunk text appears only when Context is non-empty.
func Build(in Input) ([]llm.Message, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, &service.ValidationError{Field: "question", Message: "question cannot be empty"}
	}

	messages := make([]llm.Message, 0, 2+2*len(in.History))
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: SystemPrompt})
	for _, turn := range in.History {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: turn.Question},
			llm.Message{Role: llm.RoleAssistant, Content: turn.Answer},
		)
	}

	content := question
	if len(in.Context) > 0 {
		content = fmt.Sprintf("Relevant course material context:\n%s\n\nUser question: %s", FormatContext(in.Context), question)
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: content})
	return messages, nil
}

// FormatContext renders chunks as numbered reference blocks.
func FormatContext(chunks []ContextChunk) string {
	blocks := make([]string, 0, len(chunks))
	for i, c := range chunks {
		blocks = append(blocks, fmt.Sprintf("[Reference %d] %s - Page %d (Relevance: %.3f)\n%s",
			i+1, c.Module, c.Page, c.Score, strings.TrimSpace(c.Text)))
	}
	return strings.Join(blocks, "\n\n")
}

// FormatWithReferences appends a markdown reference list to answer.
func FormatWithReferences(answer string, refs []conversation.Reference) string {
	if len(refs) == 0 {
		return answer
	}

	var b strings.Builder
	b.WriteString(answer)
	b.WriteString("\n\n**Relevant Course References:**\n")
	for _, ref := range refs {
		module := ref.Module
		if module == "" {
			module = "Unknown Module"
		}
		fmt.Fprintf(&b, "- **%s**", module)
		if ref.Timestamp != "" {
			fmt.Fprintf(&b, " (Timestamp: %s)", ref.Timestamp)
		}
		if ref.Page > 0 {
			fmt.Fprintf(&b, " (Page: %d)", ref.Page)
		}
		b.WriteString("\n")
	}
	return b.String()
}
