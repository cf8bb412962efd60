package status

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"gregoryjjb/stoplight/intersection"
)

const writeTimeout = 5 * time.Second

// createWebsocketHandler streams every phase transition as JSON, starting
// with the current one.
func createWebsocketHandler(src Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			http.Error(w, fmt.Sprintf("websocket upgrade failed: %s", err), http.StatusInternalServerError)
			return
		}
		defer c.Close(websocket.StatusInternalError, "status stream ended")

		// Clients only listen; CloseRead handles their close frames.
		ctx := c.CloseRead(r.Context())

		unsubscribe, ch := src.Subscribe()
		defer unsubscribe()

		if err := writeStatus(ctx, c, src.Status()); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-ch:
				if !ok {
					c.Close(websocket.StatusGoingAway, "intersection stopped")
					return
				}
				if err := writeStatus(ctx, c, s); err != nil {
					srvlog.Debug().Err(err).Msg("Websocket write failed")
					return
				}
			}
		}
	}
}

func writeStatus(ctx context.Context, c *websocket.Conn, s intersection.Status) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return wsjson.Write(ctx, c, s)
}
