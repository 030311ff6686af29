package chatctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kotobachat/kotoba/internal/protocol"
	"github.com/kotobachat/kotoba/internal/shared"
)

const responseTimeout = 10 * time.Second

// App talks to one relay instance.
type App struct {
	serverURL string
	out       io.Writer
	client    *http.Client
	dialer    *websocket.Dialer
}

func NewApp(serverURL string, out io.Writer) *App {
	return &App{
		serverURL: strings.TrimRight(serverURL, "/"),
		out:       out,
		client:    &http.Client{Timeout: responseTimeout},
		dialer:    websocket.DefaultDialer,
	}
}

// Run dispatches a subcommand.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: chatctl [-s server] <status|clear>")
	}
	switch args[0] {
	case "status":
		return a.Status(ctx)
	case "clear":
		return a.Clear(ctx)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// Status queries the health endpoint and prints the result.
func (a *App) Status(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.serverURL+"/api/health", nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()

	var health struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("health response decode failed: %w", err)
	}

	fmt.Fprintf(a.out, "%s (server time %s)\n", health.Status, health.Timestamp.Format(time.RFC3339))
	return nil
}

// Clear prompts for the admin password and wipes the room log. The relay
// confirms with a cleared event; a rejection or a timeout is an error.
func (a *App) Clear(ctx context.Context) error {
	pw, err := GetPassword(a.out, "Admin password: ")
	if err != nil {
		return err
	}
	defer shared.WipeByteArray(pw)

	conn, _, err := a.dialer.DialContext(ctx, a.wsURL(), nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(protocol.ClientEvent{
		Type:       protocol.TypeAdminClear,
		Credential: string(pw),
	}); err != nil {
		return fmt.Errorf("request write failed: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(responseTimeout)); err != nil {
		return err
	}
	for {
		var ev protocol.ServerEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return fmt.Errorf("no confirmation from server: %w", err)
		}
		switch ev.Type {
		case protocol.TypeCleared:
			fmt.Fprintln(a.out, "room cleared")
			return nil
		case protocol.TypeAdminClearRejected:
			return fmt.Errorf("clear rejected: %s", ev.Reason)
		}
	}
}

func (a *App) wsURL() string {
	url := a.serverURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url + "/ws"
}
