package torrent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchTrackers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("udp://tracker.one:1337/announce\n\n# stats mirrors\nudp://tracker.two:6969/announce\n  wss://tracker.three:443/announce  \n"))
	}))
	defer srv.Close()

	got := FetchTrackers(context.Background(), srv.URL)
	require.Equal(t, []string{
		"udp://tracker.one:1337/announce",
		"udp://tracker.two:6969/announce",
		"wss://tracker.three:443/announce",
	}, got)
}

func TestFetchTrackersBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	require.Nil(t, FetchTrackers(context.Background(), srv.URL))
}

func TestFetchTrackersUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	require.Nil(t, FetchTrackers(context.Background(), srv.URL))
}
