package torrent

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// FetchTrackers downloads a newline-separated tracker list. Best-effort:
// any failure degrades to an empty list, conversions then rely on the
// trackers embedded in each magnet plus DHT.
func FetchTrackers(ctx context.Context, url string) []string {
	l := log.Logger.With().Str("component", "trackers").Logger()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		l.Debug().Err(err).Str("url", url).Msg("invalid tracker list url")
		return nil
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		l.Debug().Err(err).Str("url", url).Msg("failed to fetch tracker list")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		l.Debug().Int("status", resp.StatusCode).Str("url", url).Msg("unexpected tracker list response")
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		l.Debug().Err(err).Str("url", url).Msg("failed reading tracker list")
		return nil
	}

	var out []string
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}

	l.Debug().Int("trackers", len(out)).Str("url", url).Msg("tracker list loaded")
	return out
}
