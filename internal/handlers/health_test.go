package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/mock/gomock"

	"thinkr-chatbot/internal/vectorstore/mocks"
)

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name        string
		countErr    error
		count       int
		pingErr     error
		wantStatus  int
		wantHealthy bool
		wantIssues  int
	}{
		{name: "healthy", count: 42, wantStatus: http.StatusOK, wantHealthy: true},
		{name: "empty index is healthy", count: 0, wantStatus: http.StatusOK, wantHealthy: true},
		{name: "vector store down", countErr: errors.New("connection refused"), wantStatus: http.StatusServiceUnavailable, wantIssues: 1},
		{name: "database down", count: 3, pingErr: errors.New("database is closed"), wantStatus: http.StatusServiceUnavailable, wantIssues: 1},
		{name: "both down", countErr: errors.New("x"), pingErr: errors.New("y"), wantStatus: http.StatusServiceUnavailable, wantIssues: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			store := mocks.NewMockVectorStore(ctrl)
			store.EXPECT().Count(gomock.Any(), "r_course").Return(tt.count, tt.countErr)

			handler := NewHealthHandler(store, fakePinger{err: tt.pingErr}, "r_course")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if (resp.Status == "healthy") != tt.wantHealthy {
				t.Errorf("status = %q", resp.Status)
			}
			if len(resp.Issues) != tt.wantIssues {
				t.Errorf("issues = %v, want %d", resp.Issues, tt.wantIssues)
			}
			if tt.countErr == nil && resp.IndexEntries != tt.count {
				t.Errorf("index entries = %d, want %d", resp.IndexEntries, tt.count)
			}
		})
	}
}
