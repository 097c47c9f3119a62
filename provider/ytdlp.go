package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	searchTemplate  = "%(id)s\t%(title)s\t%(uploader)s\t%(duration)s"
	resolveTemplate = "%(url)s\t%(id)s"
	audioFormat     = "bestaudio[ext=webm]/bestaudio"
)

// run executes a built yt-dlp command
var run = func(ctx context.Context, command *ytdlp.Command, args ...string) (*ytdlp.Result, error) {
	return command.Run(ctx, args...)
}

// YtDlp searches YouTube through the yt-dlp binary
type YtDlp struct {
	limiter *rate.Limiter
}

func NewYtDlp() *YtDlp {
	return &YtDlp{rate.NewLimiter(rate.Limit(4), 10)}
}

func (provider *YtDlp) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		return nil, nil
	}
	if err := provider.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	log.Debug().Str("query", query).Int("limit", limit).Msg("searching")
	command := ytdlp.New().
		FlatPlaylist().
		Print(searchTemplate).
		PlaylistItems(fmt.Sprintf("1-%d", limit)).
		NoWarnings().
		IgnoreConfig()
	res, err := run(ctx, command, fmt.Sprintf("ytsearch%d:%s", limit, query))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &Error{query, failure(res, err)}
	}

	results := parseSearch(res.Stdout)
	if len(results) == 0 {
		return nil, &Error{query, ErrNoResults}
	}
	return results, nil
}

// Resolve returns the best audio stream URL for the given track
func (provider *YtDlp) Resolve(ctx context.Context, id string) (string, error) {
	if err := provider.limiter.Wait(ctx); err != nil {
		return "", err
	}

	command := ytdlp.New().
		Print(resolveTemplate).
		Format(audioFormat).
		NoWarnings().
		IgnoreConfig()
	res, err := run(ctx, command, "--skip-download", "https://www.youtube.com/watch?v="+id)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", id, failure(res, err))
	}
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if parts := strings.Split(line, "\t"); len(parts) >= 2 && strings.HasPrefix(parts[0], "http") {
			return parts[0], nil
		}
	}
	return "", fmt.Errorf("resolve %s: no audio stream", id)
}

func parseSearch(stdout string) []Result {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	results := make([]Result, 0, len(lines))
	for _, line := range lines {
		parts := strings.Split(line, "\t")
		if len(parts) < 4 || parts[0] == "" {
			continue
		}
		results = append(results, Result{
			ID:       parts[0],
			Title:    parts[1],
			Channel:  parts[2],
			Duration: parseDuration(parts[3]),
		})
	}
	return results
}

// yt-dlp prints NA for missing fields and
// fractional seconds for some extractors
func parseDuration(value string) int {
	duration, err := time.ParseDuration(strings.TrimSpace(value) + "s")
	if err != nil || duration < 0 {
		return 0
	}
	return int(duration.Round(time.Second).Seconds())
}

func failure(res *ytdlp.Result, err error) error {
	if res == nil {
		return err
	}
	if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
		return errors.Join(err, errors.New(stderr))
	}
	return err
}
