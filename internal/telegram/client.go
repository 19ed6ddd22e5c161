// Package telegram is a minimal Bot API client: long-poll updates in, plain
// or Markdown text messages out.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gopkg.in/resty.v1"

	"github.com/telemyapp/brother-bot/internal/metrics"
)

const ParseModeMarkdown = "Markdown"

type Client struct {
	http  *resty.Client
	token string
}

// NewClient builds a client for apiURL (usually https://api.telegram.org).
// The HTTP timeout is set above pollTimeout so long polls are not cut short.
func NewClient(apiURL, token string, pollTimeout time.Duration) *Client {
	c := resty.New().
		SetHostURL(strings.TrimRight(apiURL, "/") + "/bot" + token).
		SetTimeout(pollTimeout + 15*time.Second)
	return &Client{http: c, token: token}
}

// SendMessage posts text to chatID. parseMode may be empty for plain text.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text, parseMode string) error {
	form := map[string]string{
		"chat_id": strconv.FormatInt(chatID, 10),
		"text":    text,
	}
	if parseMode != "" {
		form["parse_mode"] = parseMode
	}
	_, err := c.call(c.http.R().SetContext(ctx).SetFormData(form), http.MethodPost, "sendMessage")
	return err
}

// GetMe returns the bot's own account, whose Username addresses group
// commands like /status@name.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	raw, err := c.call(c.http.R().SetContext(ctx), http.MethodGet, "getMe")
	if err != nil {
		return User{}, err
	}
	var me User
	if err := json.Unmarshal(raw, &me); err != nil {
		return User{}, fmt.Errorf("decode getMe result: %w", err)
	}
	return me, nil
}

// GetUpdates long-polls for updates with update_id >= offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	req := c.http.R().SetContext(ctx).SetQueryParams(map[string]string{
		"offset":          strconv.FormatInt(offset, 10),
		"timeout":         strconv.Itoa(int(timeout / time.Second)),
		"allowed_updates": `["message"]`,
	})
	raw, err := c.call(req, http.MethodGet, "getUpdates")
	if err != nil {
		return nil, err
	}
	var updates []Update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("decode getUpdates result: %w", err)
	}
	return updates, nil
}

func (c *Client) call(req *resty.Request, httpMethod, method string) (json.RawMessage, error) {
	resp, err := req.Execute(httpMethod, "/"+method)
	if err != nil {
		metrics.Default().IncCounter("brotherbot_telegram_requests_total", map[string]string{"method": method, "status": "transport_error"})
		// Transport errors quote the request URL, which embeds the bot token.
		return nil, fmt.Errorf("telegram %s: %s", method, c.redact(err.Error()))
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		metrics.Default().IncCounter("brotherbot_telegram_requests_total", map[string]string{"method": method, "status": "decode_error"})
		return nil, fmt.Errorf("telegram %s: decode response (status %d): %w", method, resp.StatusCode(), err)
	}
	if !env.OK {
		metrics.Default().IncCounter("brotherbot_telegram_requests_total", map[string]string{"method": method, "status": "error"})
		code := env.ErrorCode
		if code == 0 {
			code = resp.StatusCode()
		}
		return nil, &APIError{Method: method, StatusCode: code, Description: env.Description}
	}
	metrics.Default().IncCounter("brotherbot_telegram_requests_total", map[string]string{"method": method, "status": "ok"})
	return env.Result, nil
}

func (c *Client) redact(s string) string {
	if c.token == "" {
		return s
	}
	return strings.ReplaceAll(s, c.token, "<redacted>")
}
