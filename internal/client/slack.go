// Client for the Slack Web API.
//
// Env vars:
//   - SLACK_BOT_TOKEN: Slack bot token (xoxb-...)
//   - SLACK_CHANNEL_ID: Slack channel ID (C...)
//
// Uses a bot token rather than an incoming webhook URL because only the
// chat.postMessage response carries a thread_ts, which is needed to post the
// resolved notification and any investigation summary as a reply under the
// original firing message.

package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

type SlackClient struct {
	botToken   string
	channelID  string
	httpClient *http.Client

	// threadMap: alert ID -> thread_ts. Kept in memory as a fast path;
	// the authoritative copy is model.Alert.ThreadTS in Postgres.
	threadMap sync.Map
}

type SlackMessage struct {
	Channel     string            `json:"channel"`
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
	ThreadTS    string            `json:"thread_ts,omitempty"`
}

type SlackAttachment struct {
	Color      string       `json:"color"`
	Title      string       `json:"title"`
	Text       string       `json:"text"`
	Footer     string       `json:"footer,omitempty"`
	FooterIcon string       `json:"footer_icon,omitempty"`
	Ts         int64        `json:"ts,omitempty"`
	Fields     []SlackField `json:"fields,omitempty"`
}

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type SlackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	TS    string `json:"ts,omitempty"`
}

func NewSlackClient() *SlackClient {
	return &SlackClient{
		botToken:  os.Getenv("SLACK_BOT_TOKEN"),
		channelID: os.Getenv("SLACK_CHANNEL_ID"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *SlackClient) IsConfigured() bool {
	return c.botToken != "" && c.channelID != ""
}

func (c *SlackClient) send(msg SlackMessage) (*SlackResponse, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequest("POST", "https://slack.com/api/chat.postMessage", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.botToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var slackResp SlackResponse
	if err := json.Unmarshal(body, &slackResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if !slackResp.OK {
		return nil, fmt.Errorf("slack API error: %s", slackResp.Error)
	}

	return &slackResp, nil
}

// SendFiring posts a new top-level message for a just-fired alert and
// returns its thread_ts.
func (c *SlackClient) SendFiring(title, text, color string) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("slack bot token or channel ID not configured")
	}

	msg := SlackMessage{
		Channel: c.channelID,
		Attachments: []SlackAttachment{
			{
				Color: color,
				Title: title,
				Text:  text,
				Ts:    time.Now().Unix(),
			},
		},
	}

	resp, err := c.send(msg)
	if err != nil {
		return "", err
	}
	return resp.TS, nil
}

func (c *SlackClient) StoreThreadTS(alertID, threadTS string) {
	c.threadMap.Store(alertID, threadTS)
}

func (c *SlackClient) GetThreadTS(alertID string) (string, bool) {
	val, ok := c.threadMap.Load(alertID)
	if !ok {
		return "", false
	}
	return val.(string), true
}

func (c *SlackClient) DeleteThreadTS(alertID string) {
	c.threadMap.Delete(alertID)
}

// SendToThread posts a reply (a resolved notice or investigation summary)
// under an existing thread.
func (c *SlackClient) SendToThread(threadTS, text string) error {
	if !c.IsConfigured() {
		return fmt.Errorf("slack bot token or channel ID not configured")
	}

	msg := SlackMessage{
		Channel:  c.channelID,
		ThreadTS: threadTS,
		Attachments: []SlackAttachment{
			{
				Color: "#6f42c1",
				Title: "AI investigation summary",
				Text:  toSlackMarkdown(text),
			},
		},
	}

	_, err := c.send(msg)
	return err
}

var (
	codeBlockPattern  = regexp.MustCompile("(?s)```.*?```")
	inlineCodePattern = regexp.MustCompile("`[^`]*`")
	boldPattern       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	headingPattern    = regexp.MustCompile(`(?m)^#{1,6} +(.+)$`)
)

// toSlackMarkdown rewrites CommonMark-ish LLM output (**bold**, ### heading)
// into Slack's mrkdwn syntax, leaving fenced and inline code untouched.
func toSlackMarkdown(s string) string {
	return withCodeSpansProtected(s, func(text string) string {
		text = boldPattern.ReplaceAllString(text, "*$1*")
		text = headingPattern.ReplaceAllString(text, "*$1*")
		return text
	})
}

// withCodeSpansProtected applies transform to every substring of s that
// falls outside a fenced or inline code span.
func withCodeSpansProtected(s string, transform func(string) string) string {
	var b strings.Builder
	rest := s
	for {
		loc := firstCodeSpan(rest)
		if loc == nil {
			b.WriteString(transform(rest))
			break
		}
		b.WriteString(transform(rest[:loc[0]]))
		b.WriteString(rest[loc[0]:loc[1]])
		rest = rest[loc[1]:]
	}
	return b.String()
}

func firstCodeSpan(s string) []int {
	block := codeBlockPattern.FindStringIndex(s)
	inline := inlineCodePattern.FindStringIndex(s)
	switch {
	case block == nil:
		return inline
	case inline == nil:
		return block
	case block[0] <= inline[0]:
		return block
	default:
		return inline
	}
}
