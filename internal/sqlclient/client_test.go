package sqlclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dahanmed/careops/internal/shared/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(config.StoreAPIConfig{
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
	}, zerolog.Nop())

	return client, srv
}

func TestQuery(t *testing.T) {
	var gotSQL string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/execute" {
			t.Errorf("Expected /api/execute, got %s", r.URL.Path)
		}
		// The endpoint contract: the statement arrives under the sql key
		var req struct {
			SQL string `json:"sql"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotSQL = req.SQL

		json.NewEncoder(w).Encode(map[string]any{
			"rows": []map[string]any{{"id": "a1", "title": "call"}},
		})
	})

	rows, err := client.Query(context.Background(), "SELECT * FROM care_items")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotSQL != "SELECT * FROM care_items" {
		t.Errorf("Expected statement under sql key, got %q", gotSQL)
	}
	if len(rows) != 1 || rows[0]["title"] != "call" {
		t.Errorf("Unexpected rows: %v", rows)
	}
}

func TestQueryLegacyColumnRows(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Older servers send columns plus positional row arrays
		json.NewEncoder(w).Encode(map[string]any{
			"columns": []string{"id", "title"},
			"rows":    [][]any{{"a1", "call"}, {"a2", "visit"}},
		})
	})

	rows, err := client.Query(context.Background(), "SELECT id, title FROM care_items")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0]["id"] != "a1" || rows[0]["title"] != "call" {
		t.Errorf("Unexpected first row: %v", rows[0])
	}
	if rows[1]["title"] != "visit" {
		t.Errorf("Unexpected second row: %v", rows[1])
	}
}

func TestExecuteReturnsAffectedRows(t *testing.T) {
	var gotSQL string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SQL string `json:"sql"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotSQL = req.SQL

		json.NewEncoder(w).Encode(map[string]any{"affected_rows": 3})
	})

	n, err := client.Execute(context.Background(), "UPDATE tasks SET status = 'canceled'")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotSQL == "" {
		t.Error("Expected statement under sql key, got empty")
	}
	if n != 3 {
		t.Errorf("Expected 3 affected rows, got %d", n)
	}
}

func TestErrorPayloadReturnedToCaller(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "relation \"nope\" does not exist"})
	})

	_, err := client.Query(context.Background(), "SELECT * FROM nope")
	if err == nil {
		t.Fatal("Expected error from error payload")
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("Expected store error surfaced, got %v", err)
	}
}

func TestInsertInjectsReturning(t *testing.T) {
	var gotQuery string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SQL string `json:"sql"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotQuery = req.SQL

		json.NewEncoder(w).Encode(map[string]any{
			"rows": []map[string]any{{"id": "7f3c"}},
		})
	})

	id, err := client.Insert(context.Background(), "INSERT INTO care_items (title) VALUES ('call');")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasSuffix(gotQuery, "RETURNING id") {
		t.Errorf("Expected RETURNING id appended, got %q", gotQuery)
	}
	if id != "7f3c" {
		t.Errorf("Expected id 7f3c, got %q", id)
	}
}

func TestInsertKeepsExistingReturning(t *testing.T) {
	var gotQuery string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SQL string `json:"sql"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotQuery = req.SQL

		json.NewEncoder(w).Encode(map[string]any{
			"rows": []map[string]any{{"id": float64(42)}},
		})
	})

	query := "INSERT INTO tasks (title) VALUES ('note') RETURNING id"
	id, err := client.Insert(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotQuery != query {
		t.Errorf("Expected query unchanged, got %q", gotQuery)
	}
	if id != "42" {
		t.Errorf("Expected numeric id as string, got %q", id)
	}
}

func TestEscapeString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"O'Neill", "O''Neill"},
		{"a''b", "a''''b"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := EscapeString(tt.in); got != tt.want {
			t.Errorf("EscapeString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToSQLValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"it's", "'it''s'"},
		{true, "TRUE"},
		{false, "FALSE"},
		{42, "42"},
		{int64(9000000000), "9000000000"},
		{3.5, "3.5"},
	}

	for _, tt := range tests {
		if got := ToSQLValue(tt.in); got != tt.want {
			t.Errorf("ToSQLValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCompleteCareItemTransition(t *testing.T) {
	var gotSQL string
	affected := 1
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SQL string `json:"sql"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotSQL = req.SQL

		json.NewEncoder(w).Encode(map[string]any{"affected_rows": affected})
	})

	applied, err := client.CompleteCareItem(context.Background(), "a1", "nurse kim", "reached")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !applied {
		t.Error("Expected transition applied")
	}
	if !strings.Contains(gotSQL, "'completed'") || !strings.Contains(gotSQL, "'pending'") {
		t.Errorf("Expected guarded completion update, got %q", gotSQL)
	}

	// An item already closed matches no row
	affected = 0
	applied, err = client.CompleteCareItem(context.Background(), "a1", "nurse kim", "reached")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied {
		t.Error("Expected transition not applied for non-pending item")
	}
}

func TestAssignTaskTransition(t *testing.T) {
	var gotSQL string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SQL string `json:"sql"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotSQL = req.SQL

		json.NewEncoder(w).Encode(map[string]any{"affected_rows": 1})
	})

	applied, err := client.AssignTask(context.Background(), "t1", "nurse lee")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !applied {
		t.Error("Expected assignment applied")
	}
	if !strings.Contains(gotSQL, "'nurse lee'") {
		t.Errorf("Expected assignee literal, got %q", gotSQL)
	}
}

func TestCannedStatements(t *testing.T) {
	sql, err := CompleteCareItemSQL("a1", "nurse kim", "reached, it's fine")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sql, "'completed'") {
		t.Errorf("Expected completed status in statement, got %q", sql)
	}
	if !strings.Contains(sql, "it''s fine") {
		t.Errorf("Expected escaped result literal, got %q", sql)
	}

	sql, err = TodayCareItemsSQL(time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sql, "2025-12-10") {
		t.Errorf("Expected date literal in statement, got %q", sql)
	}
}
