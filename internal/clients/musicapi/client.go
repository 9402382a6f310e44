package musicapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/soundloom/companion-bot/internal/pkg/envutil"
	pkgerrors "github.com/soundloom/companion-bot/internal/pkg/errors"
	"github.com/soundloom/companion-bot/internal/pkg/httpx"
	"github.com/soundloom/companion-bot/internal/platform/logger"
)

// Client talks to the managed music backend. The session engine only reads;
// generation, payments and library mutations live on the other side.
type Client interface {
	GetTrack(ctx context.Context, id string) (*Track, error)
	GetProject(ctx context.Context, id string) (*Project, error)
	GetArtist(ctx context.Context, id string) (*Artist, error)
	GetPlaylist(ctx context.Context, id string) (*Playlist, error)
	ListActiveJobs(ctx context.Context, userID int64) ([]*GenerationJob, error)
}

type Track struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ArtistName string `json:"artist_name,omitempty"`
	StreamURL  string `json:"stream_url,omitempty"`
}

type Project struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	TrackCount int    `json:"track_count"`
}

type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Playlist struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type GenerationJob struct {
	ID       string `json:"id"`
	UserID   int64  `json:"user_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	TrackID  string `json:"track_id,omitempty"`
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL: strings.TrimSpace(os.Getenv("MUSIC_API_BASE_URL")),
		APIKey:  strings.TrimSpace(os.Getenv("MUSIC_API_KEY")),
		Timeout: envutil.Duration("MUSIC_API_TIMEOUT", 15*time.Second),
	}
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("missing MUSIC_API_BASE_URL")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &client{
		log:        log.With("client", "MusicAPIClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

func (c *client) GetTrack(ctx context.Context, id string) (*Track, error) {
	return getJSON[Track](c, ctx, "/v1/tracks/"+id)
}

func (c *client) GetProject(ctx context.Context, id string) (*Project, error) {
	return getJSON[Project](c, ctx, "/v1/projects/"+id)
}

func (c *client) GetArtist(ctx context.Context, id string) (*Artist, error) {
	return getJSON[Artist](c, ctx, "/v1/artists/"+id)
}

func (c *client) GetPlaylist(ctx context.Context, id string) (*Playlist, error) {
	return getJSON[Playlist](c, ctx, "/v1/playlists/"+id)
}

func (c *client) ListActiveJobs(ctx context.Context, userID int64) ([]*GenerationJob, error) {
	out, err := getJSON[[]*GenerationJob](c, ctx, fmt.Sprintf("/v1/users/%d/jobs?status=active", userID))
	if err != nil {
		return nil, err
	}
	return *out, nil
}

func getJSON[T any](c *client, ctx context.Context, path string) (*T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("music backend: %w", pkgerrors.ErrUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, pkgerrors.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("Music backend request failed", "path", path, "status", resp.StatusCode)
		// Transient statuses mean the backend is unavailable and the user can
		// try again; anything else rejected this specific request.
		if httpx.IsRetryableHTTPStatus(resp.StatusCode) {
			return nil, fmt.Errorf("music backend http %d: %w", resp.StatusCode, pkgerrors.ErrUnavailable)
		}
		return nil, fmt.Errorf("music backend http %d: %w", resp.StatusCode, pkgerrors.ErrInvalidArgument)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("music backend: read body: %w", err)
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("music backend: decode: %w", err)
	}
	return &out, nil
}
