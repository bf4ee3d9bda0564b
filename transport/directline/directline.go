// Package directline implements the agent transport over the Direct Line
// conversation API: start a conversation, post a message activity, then poll
// activities with a watermark until the agent replies.
//
// The session token handed back to callers is the Direct Line conversation
// id; watermarks are tracked internally per conversation so repeated calls
// only see new activities.
package directline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hupe1980/crewmesh/core"
	"github.com/hupe1980/crewmesh/logging"
)

// DefaultBaseURL is the public Direct Line endpoint.
const DefaultBaseURL = "https://directline.botframework.com/v3/directline"

// Options configure the Direct Line transport.
type Options struct {
	BaseURL      string
	HTTPClient   *http.Client
	PollInterval time.Duration
	MaxPolls     int
	Logger       logging.Logger
}

// Transport is a core.Transport over the Direct Line API. The endpoint
// passed to Send is the per-agent Direct Line secret. Safe for concurrent
// use.
type Transport struct {
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	maxPolls     int
	logger       logging.Logger

	mu         sync.Mutex
	watermarks map[string]string
}

// New constructs a Direct Line transport with optional overrides.
func New(optFns ...func(o *Options)) *Transport {
	opts := Options{
		BaseURL:      DefaultBaseURL,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		PollInterval: time.Second,
		MaxPolls:     10,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Transport{
		baseURL:      opts.BaseURL,
		client:       opts.HTTPClient,
		pollInterval: opts.PollInterval,
		maxPolls:     opts.MaxPolls,
		logger:       opts.Logger,
		watermarks:   make(map[string]string),
	}
}

type conversationResponse struct {
	ConversationID string `json:"conversationId"`
}

type activity struct {
	Type string `json:"type"`
	From struct {
		ID string `json:"id"`
	} `json:"from"`
	Text string `json:"text"`
}

type activitiesResponse struct {
	Activities []activity `json:"activities"`
	Watermark  string     `json:"watermark"`
}

// Send implements core.Transport. An empty sessionToken starts a fresh
// conversation; otherwise the existing conversation is continued.
func (t *Transport) Send(ctx context.Context, secret, message, sessionToken string) (string, string, error) {
	conversationID := sessionToken
	if conversationID == "" {
		id, err := t.startConversation(ctx, secret)
		if err != nil {
			return "", "", err
		}
		conversationID = id
	}

	if err := t.postActivity(ctx, secret, conversationID, message); err != nil {
		return "", "", err
	}

	reply, err := t.pollReply(ctx, secret, conversationID)
	if err != nil {
		return "", "", err
	}
	return reply, conversationID, nil
}

func (t *Transport) startConversation(ctx context.Context, secret string) (string, error) {
	body, err := t.do(ctx, http.MethodPost, t.baseURL+"/conversations", secret, nil, "start_conversation")
	if err != nil {
		return "", err
	}

	var conv conversationResponse
	if err := json.Unmarshal(body, &conv); err != nil {
		return "", &core.TransportError{Op: "start_conversation", Err: fmt.Errorf("decode response: %w", err)}
	}
	if conv.ConversationID == "" {
		return "", &core.TransportError{Op: "start_conversation", Err: errors.New("response missing conversation id")}
	}

	t.logger.Debug("conversation started", "conversation_id", conv.ConversationID)
	return conv.ConversationID, nil
}

func (t *Transport) postActivity(ctx context.Context, secret, conversationID, message string) error {
	payload := map[string]any{
		"type": "message",
		"from": map[string]string{"id": "user"},
		"text": message,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return &core.TransportError{Op: "send", Err: err}
	}

	url := fmt.Sprintf("%s/conversations/%s/activities", t.baseURL, conversationID)
	if _, err := t.do(ctx, http.MethodPost, url, secret, raw, "send"); err != nil {
		return err
	}
	return nil
}

// pollReply fetches activities until a non-user message appears, advancing
// the conversation watermark on every poll.
func (t *Transport) pollReply(ctx context.Context, secret, conversationID string) (string, error) {
	for poll := 0; poll < t.maxPolls; poll++ {
		url := fmt.Sprintf("%s/conversations/%s/activities", t.baseURL, conversationID)
		if w := t.watermark(conversationID); w != "" {
			url += "?watermark=" + w
		}

		body, err := t.do(ctx, http.MethodGet, url, secret, nil, "poll")
		if err != nil {
			return "", err
		}

		var resp activitiesResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", &core.TransportError{Op: "poll", Err: fmt.Errorf("decode response: %w", err)}
		}
		if resp.Watermark != "" {
			t.setWatermark(conversationID, resp.Watermark)
		}

		reply := ""
		for _, a := range resp.Activities {
			if a.Type == "message" && a.From.ID != "user" {
				reply = a.Text
			}
		}
		if reply != "" {
			return reply, nil
		}

		select {
		case <-ctx.Done():
			return "", &core.TransportError{Op: "poll", Err: ctx.Err()}
		case <-time.After(t.pollInterval):
		}
	}

	return "", &core.TransportError{
		Op:  "poll",
		Err: fmt.Errorf("no reply after %d polls", t.maxPolls),
	}
}

// do executes one HTTP call mapping failures onto the error taxonomy:
// network errors and 5xx responses are transport errors (retryable), 4xx
// responses are application-level agent errors.
func (t *Transport) do(ctx context.Context, method, url, secret string, body []byte, op string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &core.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &core.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &core.TransportError{Op: op, Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &core.AgentCallError{
			Message: fmt.Sprintf("%s returned %d: %s", op, resp.StatusCode, truncate(string(data), 200)),
		}
	default:
		return nil, &core.TransportError{
			Op:  op,
			Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(data), 200)),
		}
	}
}

func (t *Transport) watermark(conversationID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.watermarks[conversationID]
}

func (t *Transport) setWatermark(conversationID, w string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.watermarks[conversationID] = w
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
