package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"cswatch-backend/lib/matchstore"
	"cswatch-backend/lib/scrapers/csgo"
	"cswatch-backend/lib/scrapers/steam/steamid"
	"cswatch-backend/lib/scrapers/steam/webauth"
	"cswatch-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

const testOwnerAccount = 1002

func historyFixture() string {
	var rows [2]string
	for team := 0; team < 2; team++ {
		var b strings.Builder
		for i := 0; i < 5; i++ {
			account := 1000 + team*100 + i
			id := steamid.FromAccountId(uint32(account))
			fmt.Fprintf(&b, `<tr>
				<td>
					<img src="https://avatars.example/%d.jpg" data-miniprofile="%d">
					<a class="linkTitle" href="https://steamcommunity.com/profiles/%s">player_%d</a>
				</td>
				<td>32</td><td>20</td><td>3</td><td>11</td><td>2</td><td>54%%</td><td>41</td>
			</tr>`, account, account, id.String(), account)
		}
		rows[team] = b.String()
	}

	return fmt.Sprintf(`<table class="csgo_scoreboard_root"><tr>
		<td>
			<table>
				<tr><td>Competitive Nuke</td></tr>
				<tr><td>2024-03-02 10:00:00 GMT</td></tr>
				<tr><td>Wait Time: 03:26</td></tr>
				<tr><td>Match Duration: 34:12</td></tr>
			</table>
		</td>
		<td>
			<table>
				<tr><th>Player Name</th><th>Ping</th><th>K</th><th>A</th><th>D</th><th>MVP</th><th>HSP</th><th>Score</th></tr>
				%s
				<tr><td>16 : 9</td></tr>
				%s
			</table>
		</td>
	</tr></table>`, rows[0], rows[1])
}

const personalDataFixture = `
<div id="personaldata_elements_container">
	<table class="generic_kv_table">
		<tr><th>Matchmaking Mode</th><th>Wins</th><th>Ties</th><th>Losses</th><th>Skill Group</th><th>Last Match</th></tr>
		<tr><td>Competitive</td><td>120</td><td>8</td><td>90</td><td>14</td><td>2024-03-02 10:00:00 GMT</td></tr>
	</table>
	<table class="generic_kv_table">
		<tr><th>Competitive Cooldown Expiration</th><th>Level</th></tr>
		<tr><td>2024-03-05 10:00:00 GMT</td><td>2</td></tr>
	</table>
</div>`

const profileFixture = `
<div class="playerAvatar profile_header_size online">
	<div class="playerAvatarAutoSizeInner"><img src="https://avatars.example/own.jpg"></div>
</div>
<span class="actual_persona_name">tester</span>
<div class="header_real_name"><bdi>Tess Ter</bdi><img src="https://community.example/images/countryflags/de.gif"></div>
<span class="friendPlayerLevelNum">12</span>`

func newTestHandler(t *testing.T) http.Handler {
	owner := steamid.FromAccountId(testOwnerAccount)
	bannedId := steamid.FromAccountId(1101)
	profilePrefix := "/profiles/" + owner.String() + "/"

	mux := http.NewServeMux()
	mux.HandleFunc("/dev/apikey", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>
			<div id="bodyContents_ex"><p>Key: TESTKEY123</p></div>
			<input type="submit" name="Revoke" value="Revoke">
		</html>`)
	})
	mux.HandleFunc(profilePrefix, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, profileFixture)
	})
	mux.HandleFunc(profilePrefix+"gcpd/730/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("tab") == "matchmaking" {
			fmt.Fprint(w, personalDataFixture)
			return
		}
		// competitive has one match, wingman is empty
		page := map[string]any{"success": true, "html": "<html></html>"}
		if r.URL.Query().Get("tab") == "matchhistorycompetitive" {
			page["html"] = historyFixture()
		}
		require.NoError(t, json.NewEncoder(w).Encode(page))
	})
	mux.HandleFunc("/ISteamUser/GetPlayerBans/v1/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "TESTKEY123", r.URL.Query().Get("key"))

		var players []map[string]any
		for _, raw := range strings.Split(r.URL.Query().Get("steamids"), ",") {
			record := map[string]any{"SteamId": raw}
			if raw == bannedId.String() {
				record["VACBanned"] = true
				record["DaysSinceLastBan"] = 0
			}
			players = append(players, record)
		}
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"players": players}))
	})
	return mux
}

func newTestService(t *testing.T, server *httptest.Server) Service {
	session, err := webauth.NewClient()
	require.NoError(t, err)
	session.Http.GetClient().Transport = server.Client().Transport

	serverUrl, err := url.Parse(server.URL)
	require.NoError(t, err)
	session.Domains = []string{serverUrl.Host}
	session.CommunityURL = server.URL
	session.SessionID = "testsession"
	session.SteamID = steamid.FromAccountId(testOwnerAccount)

	client := &csgo.Client{
		Session:    session,
		ProfileURL: server.URL + "/profiles/" + session.SteamID.String() + "/",
		APIBaseURL: server.URL,
	}

	store, err := matchstore.Open(":memory:")
	require.NoError(t, err)

	return NewService(client, store)
}

func TestScrape(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:services/tracker")
	defer cleanup()

	server := httptest.NewTLSServer(newTestHandler(t))
	defer server.Close()

	service := newTestService(t, server)
	ctx := context.Background()

	report, err := service.Scrape(ctx)
	require.NoError(t, err)

	require.False(t, report.Limited)
	require.Equal(t, "tester", report.Profile.Name)
	require.Equal(t, "Tess Ter", report.Profile.RealName)
	require.Equal(t, "de", report.Profile.Country)
	require.Equal(t, "online", report.Profile.Status)

	require.Len(t, report.Ranks, 1)
	require.Equal(t, "Competitive", report.Ranks[0].Mode)
	require.Equal(t, "14", report.Ranks[0].Rank)
	require.NotNil(t, report.Cooldown)
	require.Equal(t, "2", report.Cooldown.Level)

	// the harvesting account itself is clean
	require.Nil(t, report.OwnBan)

	require.Len(t, report.Matches[csgo.ModeCompetitive], 1)
	require.Empty(t, report.Matches[csgo.ModeWingman])

	annotated := report.Matches[csgo.ModeCompetitive][0]
	require.Equal(t, "nuke", annotated.Map)
	require.Len(t, annotated.Bans, 1)
	require.Equal(t, steamid.FromAccountId(1101).String(), annotated.Bans[0].SteamID)
	require.NotNil(t, annotated.Bans[0].AfterMatch)
	require.True(t, *annotated.Bans[0].AfterMatch)

	// the match is persisted, so an immediate second pass finds
	// nothing newer
	stored, err := service.store.Matches(ctx, service.client.SteamID(), csgo.ModeCompetitive)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	report, err = service.Scrape(ctx)
	require.NoError(t, err)
	require.Empty(t, report.Matches[csgo.ModeCompetitive])
}
