package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rebasevault/gateway/middleware"
)

// apiError is the error body returned by vaultd.
type apiError struct {
	Status  int
	Message string `json:"error"`
	Code    string `json:"code"`
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("vaultd returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("vaultd returned %d (%s): %s", e.Status, e.Code, e.Message)
}

type client struct {
	base   string
	token  string
	caller string
	http   *http.Client
}

func newClient(base, token, caller string, timeout time.Duration) *client {
	return &client{
		base:   strings.TrimRight(strings.TrimSpace(base), "/"),
		token:  strings.TrimSpace(token),
		caller: strings.TrimSpace(caller),
		http:   &http.Client{Timeout: timeout},
	}
}

func (c *client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.caller != "" {
		req.Header.Set(middleware.CallerHeader, c.caller)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(raw, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type tokenInfo struct {
	Token struct {
		Symbol   string `json:"symbol"`
		Decimals uint8  `json:"decimals"`
	} `json:"token"`
}

type poolInfo struct {
	ID        string `json:"id"`
	DecimalsA uint8  `json:"decimalsA"`
	DecimalsB uint8  `json:"decimalsB"`
}

func (c *client) tokenDecimals(ctx context.Context) (uint8, error) {
	var info tokenInfo
	if err := c.get(ctx, "/v1/ledger", nil, &info); err != nil {
		return 0, err
	}
	return info.Token.Decimals, nil
}

func (c *client) pool(ctx context.Context, id string) (poolInfo, error) {
	var info poolInfo
	err := c.get(ctx, "/v1/pools/"+url.PathEscape(id), nil, &info)
	return info, err
}
