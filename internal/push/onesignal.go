package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://onesignal.com/api/v1"

// OneSignal implements the push gateway port against the OneSignal REST API.
// One call fans out to a batch of player ids; OneSignal reports the ids it
// considered invalid, everything else counts as reached.
type OneSignal struct {
	appID   string
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewOneSignal(appID, apiKey, baseURL string) *OneSignal {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OneSignal{
		appID:   appID,
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type notificationRequest struct {
	AppID            string            `json:"app_id"`
	IncludePlayerIDs []string          `json:"include_player_ids"`
	Headings         map[string]string `json:"headings"`
	Contents         map[string]string `json:"contents"`
	Data             map[string]string `json:"data,omitempty"`
}

type notificationResponse struct {
	ID         string `json:"id"`
	Recipients int    `json:"recipients"`
	Errors     struct {
		InvalidPlayerIDs []string `json:"invalid_player_ids"`
	} `json:"errors"`
}

// Send posts one notification to the given player ids and returns the subset
// OneSignal accepted.
func (o *OneSignal) Send(ctx context.Context, playerIDs []string, title, body string, data map[string]string) ([]string, error) {
	payload, err := json.Marshal(notificationRequest{
		AppID:            o.appID,
		IncludePlayerIDs: playerIDs,
		Headings:         map[string]string{"en": title},
		Contents:         map[string]string{"en": body},
		Data:             data,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/notifications", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("onesignal returned %d: %s", resp.StatusCode, string(snippet))
	}

	var result notificationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("onesignal response decode failed: %w", err)
	}

	invalid := make(map[string]bool, len(result.Errors.InvalidPlayerIDs))
	for _, id := range result.Errors.InvalidPlayerIDs {
		invalid[id] = true
	}
	succeeded := make([]string, 0, len(playerIDs))
	for _, id := range playerIDs {
		if !invalid[id] {
			succeeded = append(succeeded, id)
		}
	}
	return succeeded, nil
}
