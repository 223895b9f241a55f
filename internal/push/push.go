// Package push delivers message notifications to user devices through
// an external push gateway.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/AdeolaQuadri/groupchat-api/internal/data"
)

// Notification is the payload a recipient's device receives: enough to
// render the message without another round trip.
type Notification struct {
	ConversationID string              `json:"conversationId"`
	Sender         data.SenderSnapshot `json:"sender"`
	Message        string              `json:"message"`
}

// ErrInvalidToken reports that the gateway rejected the device token as
// unknown or expired. Token refresh is the client's problem; the owner
// has to register a fresh one.
var ErrInvalidToken = errors.New("push: invalid or expired device token")

// Gateway sends one notification to one device.
type Gateway interface {
	Send(ctx context.Context, deviceToken string, n Notification) error
}

// DefaultEndpoint is the FCM legacy HTTP send endpoint.
const DefaultEndpoint = "https://fcm.googleapis.com/fcm/send"

// FCM is a Gateway over the Firebase Cloud Messaging legacy HTTP API:
// one POST per device, authorized by server key.
type FCM struct {
	endpoint  string
	serverKey string
	client    *http.Client
}

// NewFCM returns an FCM gateway. An empty endpoint selects
// DefaultEndpoint; tests point it at a local server instead.
func NewFCM(endpoint, serverKey string) *FCM {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &FCM{
		endpoint:  endpoint,
		serverKey: serverKey,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Close drops idle connections. The notifier acquires a gateway per
// fan-out and releases it on every exit path.
func (f *FCM) Close() {
	f.client.CloseIdleConnections()
}

type fcmRequest struct {
	To   string       `json:"to"`
	Data Notification `json:"data"`
}

type fcmResult struct {
	Error string `json:"error"`
}

type fcmResponse struct {
	Success int         `json:"success"`
	Failure int         `json:"failure"`
	Results []fcmResult `json:"results"`
}

// Send posts the notification to one device token. Token-level
// rejections come back as ErrInvalidToken; everything else is a
// gateway failure.
func (f *FCM) Send(ctx context.Context, deviceToken string, n Notification) error {
	body, err := json.Marshal(fcmRequest{To: deviceToken, Data: n})
	if err != nil {
		return fmt.Errorf("push: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("push: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+f.serverKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("push: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push: gateway returned %s", resp.Status)
	}

	var out fcmResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("push: decode response: %w", err)
	}
	if out.Failure > 0 && len(out.Results) > 0 {
		switch out.Results[0].Error {
		case "NotRegistered", "InvalidRegistration", "MissingRegistration":
			return fmt.Errorf("%w (%s)", ErrInvalidToken, out.Results[0].Error)
		default:
			return fmt.Errorf("push: send failed: %s", out.Results[0].Error)
		}
	}
	return nil
}
