package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"github.com/maheshrc27/reelflow/internal/igerror"
)

// sniffLen is the number of leading bytes filetype needs to recognise a
// container.
const sniffLen = 262

// URLResolver maps a stored video URL to one the Graph API can fetch.
type URLResolver interface {
	ResolveURL(ctx context.Context, raw string) (string, error)
}

// AssetService prepares a video URL for publishing.
type AssetService interface {
	// Prepare resolves raw and, when preflight is on, rejects containers
	// Reels cannot ingest with *igerror.FormatError.
	Prepare(ctx context.Context, raw string) (string, error)
}

type assetService struct {
	resolver   URLResolver
	httpClient *http.Client
	preflight  bool
}

func NewAssetService(resolver URLResolver, httpClient *http.Client, preflight bool) AssetService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &assetService{resolver: resolver, httpClient: httpClient, preflight: preflight}
}

func (s *assetService) Prepare(ctx context.Context, raw string) (string, error) {
	videoURL := raw
	if s.resolver != nil {
		resolved, err := s.resolver.ResolveURL(ctx, raw)
		if err != nil {
			return "", fmt.Errorf("resolve video url: %w", err)
		}
		videoURL = resolved
	}

	if !s.preflight {
		return videoURL, nil
	}

	head, err := s.fetchHead(ctx, videoURL)
	if err != nil {
		// the Graph API fetches the file itself; let it decide
		slog.Debug("video preflight skipped", "error", err)
		return videoURL, nil
	}

	kind, _ := filetype.Match(head)
	switch kind {
	case filetype.Unknown, matchers.TypeMp4, matchers.TypeM4v, matchers.TypeMov:
		return videoURL, nil
	default:
		return "", &igerror.FormatError{Detected: kind.MIME.Value}
	}
}

func (s *assetService) fetchHead(ctx context.Context, videoURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", sniffLen-1))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("unexpected status code fetching video: %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, sniffLen))
}
