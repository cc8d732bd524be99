package chat

// WebhookPayload is the inbound webhook body: a batch of independent
// chat events.
type WebhookPayload struct {
	Events []WebhookEvent `json:"events"`
}

// WebhookEvent is one inbound chat event. Only message and postback
// events are handled; others are ignored.
type WebhookEvent struct {
	Type       string          `json:"type"`
	ReplyToken string          `json:"replyToken"`
	Source     WebhookSource   `json:"source"`
	Message    *WebhookMessage `json:"message,omitempty"`
	Postback   *Postback       `json:"postback,omitempty"`
}

type WebhookSource struct {
	UserID string `json:"userId"`
}

type WebhookMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Postback carries a URL-encoded action payload from a pressed button.
type Postback struct {
	Data string `json:"data"`
}
