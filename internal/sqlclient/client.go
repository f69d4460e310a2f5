package sqlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dahanmed/careops/internal/shared/config"
)

// Client executes SQL statements against the remote store's execution
// endpoint (POST /api/execute). The endpoint takes one raw statement and
// returns its rows; there are no transactions, no retries and no
// parameterization. Callers must escape string literals with EscapeString
// or ToSQLValue before splicing them into a statement.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a new store client
func NewClient(cfg config.StoreAPIConfig, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log,
	}
}

type executeRequest struct {
	SQL string `json:"sql"`
}

type executeResponse struct {
	Columns      []string `json:"columns,omitempty"`
	Rows         []any    `json:"rows,omitempty"`
	Error        string   `json:"error,omitempty"`
	Message      string   `json:"message,omitempty"`
	AffectedRows int      `json:"affected_rows,omitempty"`
}

// rowObjects converts response rows to objects. Current servers send rows as
// objects; older ones send positional arrays alongside a columns list.
func (r *executeResponse) rowObjects() []map[string]any {
	if len(r.Rows) == 0 {
		return nil
	}

	out := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		switch v := row.(type) {
		case map[string]any:
			out = append(out, v)
		case []any:
			obj := make(map[string]any, len(r.Columns))
			for i, col := range r.Columns {
				if i < len(v) {
					obj[col] = v[i]
				}
			}
			out = append(out, obj)
		}
	}
	return out
}

// Query runs a statement and returns its rows
func (c *Client) Query(ctx context.Context, query string) ([]map[string]any, error) {
	resp, err := c.execute(ctx, query)
	if err != nil {
		return nil, err
	}
	return resp.rowObjects(), nil
}

// Execute runs a statement and returns the affected row count
func (c *Client) Execute(ctx context.Context, query string) (int, error) {
	resp, err := c.execute(ctx, query)
	if err != nil {
		return 0, err
	}
	return resp.AffectedRows, nil
}

// Insert runs an INSERT and returns the new row's id. A RETURNING clause is
// appended when the statement does not carry one.
func (c *Client) Insert(ctx context.Context, query string) (string, error) {
	if !strings.Contains(strings.ToLower(query), "returning") {
		query = strings.TrimRight(strings.TrimSpace(query), ";") + " RETURNING id"
	}

	resp, err := c.execute(ctx, query)
	if err != nil {
		return "", err
	}

	rows := resp.rowObjects()
	if len(rows) == 0 {
		return "", fmt.Errorf("insert returned no rows")
	}

	id, ok := rows[0]["id"]
	if !ok {
		return "", fmt.Errorf("insert returned no id column")
	}

	switch v := id.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatInt(int64(v), 10), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

func (c *Client) execute(ctx context.Context, query string) (*executeResponse, error) {
	body, err := json.Marshal(executeRequest{SQL: query})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store request failed: %w", err)
	}
	defer httpResp.Body.Close()

	var resp executeResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode store response: %w", err)
	}

	if resp.Error != "" {
		return nil, fmt.Errorf("store error: %s", resp.Error)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("store returned status %d", httpResp.StatusCode)
	}

	c.log.Debug().
		Dur("duration", time.Since(start)).
		Int("rows", len(resp.Rows)).
		Msg("store statement executed")

	return &resp, nil
}

// EscapeString doubles single quotes for safe use in a SQL string literal
func EscapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// ToSQLValue renders a Go value as a SQL literal
func ToSQLValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + EscapeString(val) + "'"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return "'" + val.UTC().Format("2006-01-02 15:04:05") + "'"
	default:
		return "'" + EscapeString(fmt.Sprintf("%v", val)) + "'"
	}
}
