package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kubesage/kubesage/internal/config"
)

// logEntry is one line returned by the log aggregation API.
type logEntry struct {
	Timestamp string `json:"timestamp"`
	Log       string `json:"log"`
}

// NewLokiLabelsTool lists the labels and values available for building
// LogQL queries.
func NewLokiLabelsTool(cfg config.ToolsConfig, client *http.Client) Tool {
	return Tool{
		Name: "loki_labels_query",
		Description: "Get all available labels and their values from Loki. " +
			"Labels represent metadata fields that can be used to filter logs. " +
			"Use this first to identify which labels are available, then construct " +
			"a LogQL query such as label = value (e.g. app = grafana).",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, _ map[string]any) (any, error) {
			var body struct {
				Labels any `json:"labels"`
			}
			if err := getJSON(ctx, client, cfg.LokiURL+"/labels", nil, &body); err != nil {
				return nil, fmt.Errorf("Loki API request error: %w", err)
			}
			return map[string]any{
				"status": "success",
				"labels": body.Labels,
			}, nil
		},
	}
}

// NewLokiLogsTool searches logs by LogQL query in a time range. Info
// level lines are dropped unless debug is set, so the agent sees
// warnings and errors first.
func NewLokiLogsTool(cfg config.ToolsConfig, client *http.Client) Tool {
	return Tool{
		Name: "loki_logs_query",
		Description: "Query logs from Loki using LogQL within a specified time range. " +
			"Use loki_labels_query first to find real labels and values; do not use " +
			"literal placeholders. By default only logs above info level are returned; " +
			"set debug to true to get all logs. Time range uses 'YYYY-MM-DD HH:MM:SS' format. " +
			"If no useful logs are found, try kubectl_command for more detail.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":      map[string]any{"type": "string", "description": "LogQL query string (label = value)"},
				"start_time": map[string]any{"type": "string", "description": "Start time, 'YYYY-MM-DD HH:MM:SS'"},
				"end_time":   map[string]any{"type": "string", "description": "End time, 'YYYY-MM-DD HH:MM:SS'"},
				"limit":      map[string]any{"type": "integer", "description": "Maximum log entries to return"},
				"debug":      map[string]any{"type": "boolean", "description": "Include info-level logs"},
			},
			"required": []string{"query", "start_time", "end_time"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			query, err := stringArg(args, "query")
			if err != nil {
				return nil, err
			}
			startTime, err := stringArg(args, "start_time")
			if err != nil {
				return nil, err
			}
			endTime, err := stringArg(args, "end_time")
			if err != nil {
				return nil, err
			}
			limit := intArg(args, "limit", 1000)
			debug := boolArg(args, "debug", false)

			params := url.Values{
				"query":      {query},
				"start_time": {startTime},
				"end_time":   {endTime},
				"limit":      {strconv.Itoa(limit)},
			}
			var body struct {
				Stream any        `json:"stream"`
				Values []logEntry `json:"values"`
			}
			if err := getJSON(ctx, client, cfg.LokiURL+"/logs", params, &body); err != nil {
				return nil, fmt.Errorf("Loki API request error: %w", err)
			}

			target := body.Stream
			if target == nil {
				target = "unknown"
			}
			logs := body.Values
			if !debug {
				filtered := make([]logEntry, 0, len(logs))
				for _, entry := range logs {
					if !strings.Contains(strings.ToLower(entry.Log), "info") {
						filtered = append(filtered, entry)
					}
				}
				if len(filtered) == 0 {
					filtered = []logEntry{{Timestamp: endTime, Log: "No critical logs found"}}
				}
				logs = filtered
			}
			return map[string]any{
				"status": "success",
				"target": target,
				"logs":   logs,
			}, nil
		},
	}
}

// getJSON performs a GET with query params and decodes a JSON body.
func getJSON(ctx context.Context, client *http.Client, rawURL string, params url.Values, out any) error {
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.Unmarshal(data, out)
}
