// Package chat is a minimal client for the messaging platform: reply by
// token, push by user id, profile lookup, and webhook signature
// verification. Card rendering lives with the callers; this package
// only moves messages.
package chat

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.line.me"

// Message is one outbound message. Only text messages are produced by
// this service.
type Message struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// TextMessage builds a plain text message.
func TextMessage(text string) Message {
	return Message{Type: "text", Text: text}
}

// Profile is the platform-side profile of a chat user.
type Profile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	PictureURL  string `json:"pictureUrl,omitempty"`
}

// Client talks to the messaging platform's REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a messaging client with the channel access token.
func NewClient(logger *slog.Logger, token, baseURL string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// Reply sends messages in response to a webhook event's reply token.
func (c *Client) Reply(ctx context.Context, replyToken string, messages ...Message) error {
	body := struct {
		ReplyToken string    `json:"replyToken"`
		Messages   []Message `json:"messages"`
	}{ReplyToken: replyToken, Messages: messages}
	return c.post(ctx, "/v2/bot/message/reply", body, nil)
}

// Push sends messages to a user outside a reply context.
func (c *Client) Push(ctx context.Context, userID string, messages ...Message) error {
	body := struct {
		To       string    `json:"to"`
		Messages []Message `json:"messages"`
	}{To: userID, Messages: messages}
	return c.post(ctx, "/v2/bot/message/push", body, nil)
}

// GetProfile fetches a chat user's platform profile.
func (c *Client) GetProfile(ctx context.Context, userID string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/bot/profile/"+userID, nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Profile{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return Profile{}, fmt.Errorf("get profile: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if c.token == "" {
		return fmt.Errorf("chat channel token is empty")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chat %s: status=%d body=%s", path, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// ValidateSignature checks a webhook body against the platform's
// signature header: base64(HMAC-SHA256(channel secret, body)).
func ValidateSignature(channelSecret string, body []byte, signature string) bool {
	if channelSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
