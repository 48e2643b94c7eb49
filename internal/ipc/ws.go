package ipc

import (
	"context"
	"net"

	"github.com/gorilla/websocket"

	"github.com/goccy/go-json"
)

// Watch dials the /ws/processes stream and calls onUpdate with each
// snapshot batch until ctx is cancelled or the connection drops.
func (c *Client) Watch(ctx context.Context, socketPath string, onUpdate func([]ProcessView)) error {
	dialer := websocket.Dialer{
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}
	conn, _, err := dialer.DialContext(ctx, "ws://hearth/ws/processes", nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var views []ProcessView
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &views); err != nil {
			continue
		}
		onUpdate(views)
	}
}
