// internal/remote/client.go
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MidnightGrind/ghost/internal/codec"
	"github.com/MidnightGrind/ghost/internal/config"
	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

const (
	defaultTimeout  = 30 * time.Second
	maxDecodedBytes = 64 << 20
	contentType     = "application/x-ghost"
)

// Client handles communication with the leaderboard service over HTTP.
// Record bodies are the binary ghost format compressed with zstd.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	codec      *codec.Codec
	encoder    *zstd.Encoder
	decoder    *zstd.Decoder
}

// New creates a new leaderboard client. A nil codec uses the current format.
func New(cfg config.RemoteConfig, c *codec.Codec) (*Client, error) {
	if c == nil {
		c = codec.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedBytes))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.ServerURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		codec:      c,
		encoder:    encoder,
		decoder:    decoder,
	}, nil
}

// Close releases the zstd decoder.
func (c *Client) Close() {
	c.decoder.Close()
}

// Healthcheck checks if the leaderboard service is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/healthcheck", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: healthcheck request failed: %w", ErrRemoteFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: healthcheck returned status %d", ErrRemoteFailure, resp.StatusCode)
	}
	return nil
}

// Upload sends an encoded record to the service.
func (c *Client) Upload(ctx context.Context, rec *core.Record) error {
	data, err := c.codec.Encode(rec)
	if err != nil {
		return fmt.Errorf("%w: failed to encode record: %w", ErrRemoteFailure, err)
	}
	body := c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2))

	req, err := c.newRequest(ctx, http.MethodPost, "/ghosts", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Encoding", "zstd")
	req.Header.Set("X-Track-Id", rec.TrackID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: upload request failed: %w", ErrRemoteFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: upload returned status %d", ErrRemoteFailure, resp.StatusCode)
	}
	return nil
}

// Download fetches and decodes a record by id.
func (c *Client) Download(ctx context.Context, id uuid.UUID) (*core.Record, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/ghosts/"+id.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download request failed: %w", ErrRemoteFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: download returned status %d", ErrRemoteFailure, resp.StatusCode)
	}

	compressed, err := io.ReadAll(io.LimitReader(resp.Body, maxDecodedBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read download: %w", ErrRemoteFailure, err)
	}
	data, err := c.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decompress download: %w", ErrRemoteFailure, err)
	}
	rec, err := c.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode download: %w", ErrRemoteFailure, err)
	}
	if rec.ID != id {
		return nil, fmt.Errorf("%w: requested %s but received %s", ErrRemoteFailure, id, rec.ID)
	}
	return rec, nil
}

// FetchLeaderboard returns count entries starting at rank start.
func (c *Client) FetchLeaderboard(ctx context.Context, trackID string, start, count int) ([]core.LeaderboardEntry, error) {
	q := url.Values{}
	q.Set("start", strconv.Itoa(start))
	q.Set("count", strconv.Itoa(count))
	path := "/leaderboards/" + url.PathEscape(trackID) + "?" + q.Encode()

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: leaderboard request failed: %w", ErrRemoteFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: leaderboard returned status %d", ErrRemoteFailure, resp.StatusCode)
	}

	var entries []core.LeaderboardEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: failed to parse leaderboard: %w", ErrRemoteFailure, err)
	}
	return entries, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", ErrRemoteFailure, err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	return req, nil
}
