package ipc

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/goccy/go-json"
)

// Client talks to a Server over its unix domain socket. Used by
// cmd/hearthctl so the operator CLI never needs to know about
// process.Table or internal/mailbox directly.
type Client struct {
	http *http.Client
}

// NewClient dials socketPath, routing all requests through it
// regardless of the URL host given to individual calls.
func NewClient(socketPath string) *Client {
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

func (c *Client) ListProcesses(ctx context.Context) ([]ProcessView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://hearth/processes", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ipc: list processes: status %d", resp.StatusCode)
	}
	var views []ProcessView
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		return nil, err
	}
	return views, nil
}

func (c *Client) Kill(ctx context.Context, id string) error {
	body, _ := json.Marshal(KillRequest{ID: id})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://hearth/processes/kill", bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("ipc: kill %s: status %d", id, resp.StatusCode)
	}
	return nil
}

func (c *Client) Spawn(ctx context.Context, digest, entry string) (string, error) {
	body, _ := json.Marshal(SpawnRequest{Digest: digest, Entry: entry})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://hearth/processes/spawn", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ipc: spawn: status %d", resp.StatusCode)
	}
	var out SpawnResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ID, nil
}
