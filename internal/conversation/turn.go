// Package conversation keeps the ordered question/answer history of a chat session.
package conversation

import "time"

// Reference points an answer back to course material.
type Reference struct {
	Module         string  `json:"module"`
	Source         string  `json:"source"`
	Page           int     `json:"page"`
	Timestamp      string  `json:"timestamp,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Turn is one question and its answer.
type Turn struct {
	Question    string      `json:"question"`
	Answer      string      `json:"answer"`
	References  []Reference `json:"references"`
	ContextUsed bool        `json:"context_used"`
	Model       string      `json:"model"`
	Timestamp   time.Time   `json:"timestamp"`
}
