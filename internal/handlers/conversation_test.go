package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"thinkr-chatbot/internal/conversation"
)

func seededHistory(t *testing.T) *conversation.History {
	t.Helper()
	hist := conversation.NewHistory()
	ctx := context.Background()
	turns := []conversation.Turn{
		{Question: "What is a data.frame?", Answer: "A list of equal-length vectors.", Model: "gpt-4", Timestamp: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
		{Question: "And a tibble?", Answer: "A modern data.frame.", Model: "gpt-4", Timestamp: time.Date(2024, 5, 1, 9, 1, 0, 0, time.UTC)},
	}
	for _, turn := range turns {
		if err := hist.Append(ctx, turn); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return hist
}

func TestConversationHandler_Clear(t *testing.T) {
	hist := seededHistory(t)
	h := NewConversationHandler(hist)

	w := httptest.NewRecorder()
	h.Clear(w, httptest.NewRequest(http.MethodPost, "/conversation/clear", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if hist.Len() != 0 {
		t.Errorf("history length = %d after clear", hist.Len())
	}
}

func TestConversationHandler_Export(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		wantStatus  int
		contentType string
		check       func(*testing.T, string)
	}{
		{
			name:        "default json",
			target:      "/conversation/export",
			wantStatus:  http.StatusOK,
			contentType: "application/json",
			check: func(t *testing.T, body string) {
				var exp conversation.Export
				if err := json.Unmarshal([]byte(body), &exp); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if len(exp.Conversation) != 2 || exp.TotalMessages != 4 || exp.ExportTimestamp == "" {
					t.Errorf("unexpected export: %+v", exp)
				}
			},
		},
		{
			name:        "plain text",
			target:      "/conversation/export?format=text",
			wantStatus:  http.StatusOK,
			contentType: "text/plain",
			check: func(t *testing.T, body string) {
				if !strings.Contains(body, "User: And a tibble?") || !strings.Contains(body, "Assistant: A modern data.frame.") {
					t.Errorf("unexpected transcript: %s", body)
				}
			},
		},
		{
			name:       "unknown format",
			target:     "/conversation/export?format=xml",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewConversationHandler(seededHistory(t))
			w := httptest.NewRecorder()
			h.Export(w, httptest.NewRequest(http.MethodGet, tt.target, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.contentType != "" && !strings.HasPrefix(w.Header().Get("Content-Type"), tt.contentType) {
				t.Errorf("content type = %q, want %q", w.Header().Get("Content-Type"), tt.contentType)
			}
			if tt.check != nil {
				tt.check(t, w.Body.String())
			}
		})
	}
}

func TestConversationHandler_ExportImportRoundTrip(t *testing.T) {
	src := seededHistory(t)
	w := httptest.NewRecorder()
	NewConversationHandler(src).Export(w, httptest.NewRequest(http.MethodGet, "/conversation/export", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}

	dst := conversation.NewHistory()
	w2 := httptest.NewRecorder()
	NewConversationHandler(dst).Import(w2, httptest.NewRequest(http.MethodPost, "/conversation/import", strings.NewReader(w.Body.String())))
	if w2.Code != http.StatusOK {
		t.Fatalf("import status = %d (body %s)", w2.Code, w2.Body.String())
	}

	var resp StatusResponse
	if err := json.NewDecoder(w2.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalMessages != 4 {
		t.Errorf("total messages = %d, want 4", resp.TotalMessages)
	}

	got, want := dst.Turns(), src.Turns()
	if len(got) != len(want) {
		t.Fatalf("imported %d turns, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Question != want[i].Question || got[i].Answer != want[i].Answer || !got[i].Timestamp.Equal(want[i].Timestamp) {
			t.Errorf("turn %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestConversationHandler_ImportErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "empty body", body: "", wantStatus: http.StatusBadRequest},
		{name: "not json", body: "User: hi", wantStatus: http.StatusBadRequest},
		{name: "empty question", body: `{"conversation":[{"question":"  ","answer":"x"}]}`, wantStatus: http.StatusBadRequest},
		{name: "too large", body: `{"conversation":[],"pad":"` + strings.Repeat("x", maxBodyBytes) + `"}`, wantStatus: http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hist := seededHistory(t)
			w := httptest.NewRecorder()
			NewConversationHandler(hist).Import(w, httptest.NewRequest(http.MethodPost, "/conversation/import", strings.NewReader(tt.body)))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if hist.Len() != 2 {
				t.Errorf("failed import should leave history untouched, len = %d", hist.Len())
			}
		})
	}
}
