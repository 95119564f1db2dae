// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Constants for default connection settings
const (
	DefaultAgentPort = 12310
	DefaultAgentHost = "localhost"
)

// getAgentBaseURL returns the standard address for the agent server.
// PLANTPULSE_AGENT_URL overrides the default for remote servers.
func getAgentBaseURL() string {
	if url := os.Getenv("PLANTPULSE_AGENT_URL"); url != "" {
		return url
	}
	return fmt.Sprintf("http://%s:%d", DefaultAgentHost, DefaultAgentPort)
}

// newAgentRequest builds a request with the JSON content type and, when
// PLANTPULSE_API_TOKEN is set, the bearer credential the server expects.
func newAgentRequest(method, url string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := os.Getenv("PLANTPULSE_API_TOKEN"); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// doJSON sends the request and decodes a JSON response body into out.
// Non-2xx statuses become errors carrying the response body.
func doJSON(req *http.Request, timeout time.Duration, out any) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach the agent at %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("agent returned status %d: %s", resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
