package botapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/soundloom/companion-bot/internal/pkg/envutil"
	"github.com/soundloom/companion-bot/internal/pkg/httpx"
	"github.com/soundloom/companion-bot/internal/platform/logger"
)

type Client interface {
	SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error)
	EditMessageText(ctx context.Context, req EditMessageRequest) (*Message, error)
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
}

type Config struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Token:   strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		BaseURL: strings.TrimSpace(os.Getenv("BOT_API_BASE_URL")),
		Timeout: envutil.Duration("BOT_API_TIMEOUT", 30*time.Second),
	}
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("missing BOT_TOKEN")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.telegram.org"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &client{
		log:        log.With("client", "BotAPIClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

func (c *client) SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("botapi: text required")
	}
	return doJSON[Message](c, ctx, "sendMessage", req)
}

func (c *client) EditMessageText(ctx context.Context, req EditMessageRequest) (*Message, error) {
	if req.MessageID == 0 {
		return nil, fmt.Errorf("botapi: message id required")
	}
	return doJSON[Message](c, ctx, "editMessageText", req)
}

func (c *client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	body := map[string]int64{"chat_id": chatID, "message_id": messageID}
	_, err := doJSON[bool](c, ctx, "deleteMessage", body)
	return err
}

func (c *client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	body := map[string]string{"callback_query_id": callbackID}
	if text != "" {
		body["text"] = text
	}
	_, err := doJSON[bool](c, ctx, "answerCallbackQuery", body)
	return err
}

type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}

type HTTPError struct {
	StatusCode  int
	Description string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "botapi: <nil error>"
	}
	desc := strings.TrimSpace(e.Description)
	if desc == "" {
		desc = "<empty description>"
	}
	return fmt.Sprintf("botapi http %d: %s", e.StatusCode, desc)
}

// Bot API calls are attempt-once: a failed send or delete has a fallback path
// at the call site, so retrying here would only delay the handler.
func doJSON[T any](c *client, ctx context.Context, method string, payload any) (*T, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.cfg.BaseURL, c.cfg.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("botapi %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("botapi %s: read body: %w", method, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("botapi %s: decode response: %w", method, err)
	}
	if !env.OK {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Description: env.Description}
		c.log.Warn("Bot API call rejected",
			"method", method,
			"status", resp.StatusCode,
			"retryable", httpx.IsRetryableHTTPStatus(resp.StatusCode),
			"description", env.Description,
		)
		return nil, httpErr
	}

	var out T
	if len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, &out); err != nil {
			return nil, fmt.Errorf("botapi %s: decode result: %w", method, err)
		}
	}
	return &out, nil
}
