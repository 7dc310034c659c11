package csgo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"cswatch-backend/lib/scrapers/steam/steamid"
	"cswatch-backend/lib/scrapers/steam/webauth"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	session, err := webauth.NewClient()
	require.NoError(t, err)
	// the transport carries the browser-fingerprint wrapper, so the test
	// server's certificate pool has to be installed underneath it
	session.Http.GetClient().Transport = server.Client().Transport

	serverUrl, err := url.Parse(server.URL)
	require.NoError(t, err)
	session.Domains = []string{serverUrl.Host}
	session.CommunityURL = server.URL
	session.SessionID = "testsession"
	session.SteamID = steamid.FromAccountId(1002)

	return &Client{
		Session:    session,
		ProfileURL: server.URL + "/profiles/" + session.SteamID.String() + "/",
	}
}

func writePage(t *testing.T, w http.ResponseWriter, token string, blocks ...string) {
	payload := map[string]any{
		"success": true,
		"html":    historyPageHtml(blocks...),
	}
	if token != "" {
		payload["continue_token"] = token
	} else {
		payload["continue_token"] = nil
	}
	require.NoError(t, json.NewEncoder(w).Encode(payload))
}

func TestFetchMatchesPaginates(t *testing.T) {
	teams := fullTeams(5)

	var requests []url.Values
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Query())
		switch r.URL.Query().Get("continue_token") {
		case "0":
			writePage(t, w, "1700000000", matchBlockHtml(
				"Competitive", "Nuke", "2024-03-02 10:00:00", "16 : 9", teams,
			))
		case "1700000000":
			writePage(t, w, "", matchBlockHtml(
				"Competitive", "Train", "2024-03-01 09:00:00", "16 : 12", teams,
			))
		default:
			t.Errorf("unexpected continuation cursor %q", r.URL.Query().Get("continue_token"))
		}
	}))
	defer server.Close()

	client := newTestClient(t, server)
	matches, err := client.FetchMatches(context.Background(), ModeCompetitive, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "nuke", matches[0].Map)
	require.Equal(t, "train", matches[1].Map)

	require.Len(t, requests, 2)
	for _, query := range requests {
		require.Equal(t, "1", query.Get("ajax"))
		require.Equal(t, "matchhistorycompetitive", query.Get("tab"))
		require.Equal(t, "testsession", query.Get("sessionid"))
	}
}

func TestFetchMatchesFreshnessFilter(t *testing.T) {
	teams := fullTeams(5)
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePage(t, w, "",
			matchBlockHtml("Competitive", "Nuke", "2024-03-02 10:00:00", "16 : 9", teams),
			matchBlockHtml("Competitive", "Train", "2024-03-01 09:00:00", "16 : 12", teams),
		)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	since := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	matches, err := client.FetchMatches(context.Background(), ModeCompetitive, &since)
	require.NoError(t, err)

	// a record dated exactly at the boundary is not newer than it
	require.Len(t, matches, 1)
	require.Equal(t, "nuke", matches[0].Map)
}

func TestFetchMatchesMalformedPage(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>present the login form instead</html>"))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	matches, err := client.FetchMatches(context.Background(), ModeCompetitive, nil)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestFetchMatchesRepeatedCursor(t *testing.T) {
	teams := fullTeams(5)
	calls := 0
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writePage(t, w, "1700000000", matchBlockHtml(
			"Competitive", "Nuke", "2024-03-02 10:00:00", "16 : 9", teams,
		))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	matches, err := client.FetchMatches(context.Background(), ModeCompetitive, nil)
	require.NoError(t, err)

	// the second page repeats the cursor of the first, which ends the
	// crawl instead of looping
	require.Equal(t, 2, calls)
	require.Len(t, matches, 2)
}

func TestFetchMatchesNumericToken(t *testing.T) {
	teams := fullTeams(5)
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("continue_token") == "0" {
			// token as a bare JSON number
			w.Write([]byte(`{"success":true,"html":` + jsonString(historyPageHtml(
				matchBlockHtml("Competitive", "Nuke", "2024-03-02 10:00:00", "16 : 9", teams),
			)) + `,"continue_token":1700000000}`))
			return
		}
		writePage(t, w, "", matchBlockHtml(
			"Competitive", "Train", "2024-03-01 09:00:00", "16 : 12", teams,
		))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	matches, err := client.FetchMatches(context.Background(), ModeCompetitive, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
}

func jsonString(s string) string {
	encoded, _ := json.Marshal(s)
	return string(encoded)
}
