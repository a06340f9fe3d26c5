package engine

import (
	"fmt"
	"strings"
)

type apiRequestContent struct {
	URL             string            `mapstructure:"url"`
	Method          string            `mapstructure:"method"`
	Params          map[string]string `mapstructure:"params"`
	Headers         map[string]string `mapstructure:"headers"`
	Body            map[string]any    `mapstructure:"body"`
	ResponseBlockID int64             `mapstructure:"response_block_id"`
}

// handleAPIRequest makes an outbound HTTP call with templated url, params,
// headers and body. A failed call is logged and halts this branch instead of
// terminating the run; the bot author handles absence of a response by not
// reaching the response block. On success the response body and status code
// become run variables and the run jumps to the response block when one is
// configured.
func (m *Manager) handleAPIRequest(exec *Execution, block *Block) (int64, error) {
	var content apiRequestContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	if content.URL == "" {
		m.l.WarnContext(exec, fmt.Sprintf("API request block %d has no url", block.ID))
		return 0, nil
	}

	url, err := m.renderer.Render(content.URL, exec.Vars.All())
	if err != nil {
		return 0, err
	}

	req := m.http.R().SetContext(exec)
	for k, v := range content.Params {
		rendered, err := m.renderer.Render(v, exec.Vars.All())
		if err != nil {
			return 0, err
		}
		req.SetQueryParam(k, rendered)
	}
	for k, v := range content.Headers {
		rendered, err := m.renderer.Render(v, exec.Vars.All())
		if err != nil {
			return 0, err
		}
		req.SetHeader(k, rendered)
	}
	if len(content.Body) > 0 {
		body := make(map[string]any, len(content.Body))
		for k, v := range content.Body {
			if s, ok := v.(string); ok {
				rendered, err := m.renderer.Render(s, exec.Vars.All())
				if err != nil {
					return 0, err
				}
				body[k] = rendered
				continue
			}
			body[k] = v
		}
		req.SetBody(body)
	}

	method := strings.ToUpper(content.Method)
	if method == "" {
		method = "GET"
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		m.l.WarnContext(exec, fmt.Sprintf("API request to %s failed: %v", url, err))
		return 0, nil
	}
	if resp.IsError() {
		m.l.WarnContext(exec, fmt.Sprintf("API request to %s returned status %d", url, resp.StatusCode()))
		return 0, nil
	}

	exec.Vars.Define("api_response", string(resp.Body()))
	exec.Vars.Define("api_status", resp.StatusCode())

	if content.ResponseBlockID != 0 {
		return content.ResponseBlockID, nil
	}
	return exec.Logic.FirstOutgoing(block.ID), nil
}

type databaseContent struct {
	Query           string            `mapstructure:"query"`
	Params          map[string]string `mapstructure:"params"`
	ResponseBlockID int64             `mapstructure:"response_block_id"`
}

// handleDatabase renders the query and its named parameters and executes them
// through the database backend. Result rows become the db_result variable.
// With rows present the run jumps to the response block when one is
// configured; with no rows it advances the default edge.
func (m *Manager) handleDatabase(exec *Execution, block *Block) (int64, error) {
	if m.db == nil {
		return 0, newValidationError("database backend is not configured", nil)
	}

	var content databaseContent
	if err := decodeContent(block, &content); err != nil {
		return 0, err
	}

	if content.Query == "" {
		m.l.WarnContext(exec, fmt.Sprintf("Database block %d has no query", block.ID))
		return 0, nil
	}

	query, err := m.renderer.Render(content.Query, exec.Vars.All())
	if err != nil {
		return 0, err
	}
	params := make(map[string]any, len(content.Params))
	for k, v := range content.Params {
		rendered, err := m.renderer.Render(v, exec.Vars.All())
		if err != nil {
			return 0, err
		}
		params[k] = rendered
	}

	rows, err := m.db.Query(exec, query, params)
	if err != nil {
		return 0, fmt.Errorf("error executing database query: %w", err)
	}

	if len(rows) == 0 {
		m.l.InfoContext(exec, fmt.Sprintf("Database block %d query returned no rows", block.ID))
		return exec.Logic.FirstOutgoing(block.ID), nil
	}

	exec.Vars.Define("db_result", rows)
	if content.ResponseBlockID != 0 {
		return content.ResponseBlockID, nil
	}
	return exec.Logic.FirstOutgoing(block.ID), nil
}
