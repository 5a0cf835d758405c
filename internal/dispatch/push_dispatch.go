package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/ride-sharing/internal/models"
)

// SelectionNotice is pushed to a ride owner when a rider reserves seats.
type SelectionNotice struct {
	Type      string           `json:"type"`
	Selection models.Selection `json:"selection"`
	Remaining int              `json:"remaining_seats"`
}

// PushNotifier tells ride owners about selections, over their websocket
// session when one is open and otherwise via an optional webhook.
type PushNotifier struct {
	Endpoint string
	Client   *http.Client
	WS       *WSRegistry
}

func NewPushNotifier(endpoint string, ws *WSRegistry) *PushNotifier {
	return &PushNotifier{Endpoint: endpoint, Client: &http.Client{Timeout: 3 * time.Second}, WS: ws}
}

func (p *PushNotifier) NotifySelection(ctx context.Context, ownerID string, sel models.Selection, remaining int) error {
	notice := SelectionNotice{Type: "ride_selected", Selection: sel, Remaining: remaining}
	if p.WS != nil {
		if err := p.WS.Send(ownerID, notice); err == nil {
			return nil
		}
	}
	if p.Endpoint == "" {
		return ErrNoSession
	}
	b, err := json.Marshal(map[string]any{"owner_id": ownerID, "notice": notice})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
