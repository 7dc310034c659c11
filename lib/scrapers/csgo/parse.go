package csgo

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cswatch-backend/lib/htmlutil"
	"cswatch-backend/lib/scrapers/steam/steamid"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

var clockPattern = regexp.MustCompile(`\d+:\d+`)
var digitsPattern = regexp.MustCompile(`\d+`)

// ParseMatches decodes one page fragment of match history markup.
// `self` is the authenticated identity; win/loss derivation depends on
// which team it sits in, so it is an explicit parameter rather than
// client state.
//
// A malformed match block fails only that record, never its siblings.
func ParseMatches(ctx context.Context, fragment string, mode GameMode, self steamid.SteamID) ([]Match, error) {
	ctx, span := tracer.Start(ctx, "ParseMatches")
	defer span.End()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(strings.TrimSpace(fragment)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse history markup")
		return nil, fmt.Errorf("parse history markup: %w", err)
	}

	var matches []Match
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		// a match block row carries two sub-tables: metadata and scoreboard
		tables := row.Find("table")
		if tables.Length() < 2 {
			return
		}

		match, err := parseMatch(ctx, tables.Eq(0), tables.Eq(1), mode, self)
		if err != nil {
			span.RecordError(err)
			slog.WarnContext(ctx, "skipping malformed match block", "err", err)
			return
		}
		matches = append(matches, match)
	})

	return matches, nil
}

func parseMatch(ctx context.Context, info, scoreboard *goquery.Selection, mode GameMode, self steamid.SteamID) (Match, error) {
	match, err := parseMatchInfo(ctx, info, mode)
	if err != nil {
		return Match{}, err
	}

	err = parseScoreboard(scoreboard, &match)
	if err != nil {
		return Match{}, err
	}

	match.Outcome = deriveOutcome(match.ScoreA, match.ScoreB, match.Teams, self)
	return match, nil
}

func parseMatchInfo(ctx context.Context, sel *goquery.Selection, mode GameMode) (Match, error) {
	rows := sel.Find("tr")
	if rows.Length() < 4 {
		return Match{}, fmt.Errorf("match info has %d rows, want at least 4", rows.Length())
	}

	head := strings.ToLower(htmlutil.CleanText(rows.Eq(0)))
	// the header names the mode itself; the crawled tab is only the
	// fallback when it doesn't
	detected := mode
	switch {
	case strings.Contains(head, string(ModeCompetitive)):
		detected = ModeCompetitive
	case strings.Contains(head, string(ModeWingman)):
		detected = ModeWingman
	}
	mapName := strings.ReplaceAll(head, string(ModeCompetitive), "")
	mapName = strings.TrimSpace(strings.ReplaceAll(mapName, string(ModeWingman), ""))

	date, err := ParseDate(htmlutil.CleanText(rows.Eq(1)))
	if err != nil {
		return Match{}, err
	}

	searchDuration, err := parseClockRow(rows.Eq(2))
	if err != nil {
		return Match{}, fmt.Errorf("wait time: %w", err)
	}
	playDuration, err := parseClockRow(rows.Eq(3))
	if err != nil {
		return Match{}, fmt.Errorf("match duration: %w", err)
	}

	replay := ""
	anchors := htmlutil.GetAnchors(ctx, sel.Find("td.csgo_scoreboard_cell_noborder a"))
	if len(anchors) > 0 {
		replay = anchors[0].Href
	}

	return Match{
		Mode:           detected,
		Map:            mapName,
		Date:           date,
		SearchDuration: searchDuration,
		PlayDuration:   playDuration,
		ReplayURL:      replay,
	}, nil
}

func parseClockRow(row *goquery.Selection) (time.Duration, error) {
	text := htmlutil.CleanText(row)
	clock := clockPattern.FindString(text)
	if clock == "" {
		return 0, fmt.Errorf("no mm:ss value in %q", text)
	}
	parts := strings.SplitN(clock, ":", 2)
	minutes, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	return time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second, nil
}

func parseScoreboard(sel *goquery.Selection, match *Match) error {
	playerCount := match.Mode.PlayerCount()
	rows := sel.Find("tr")
	// header row, two team blocks and the score row between them
	if rows.Length() < 2*(playerCount+1) {
		return fmt.Errorf(
			"scoreboard has %d rows, want at least %d for %s",
			rows.Length(), 2*(playerCount+1), match.Mode,
		)
	}

	scoreText := htmlutil.CleanText(rows.Eq(playerCount + 1).Find("td").First())
	scoreA, scoreB, err := parseScore(scoreText)
	if err != nil {
		return err
	}
	match.ScoreA = scoreA
	match.ScoreB = scoreB

	for team := 0; team < 2; team++ {
		players := make(Team, 0, playerCount)
		for i := 0; i < playerCount; i++ {
			row := rows.Eq(team*(playerCount+1) + 1 + i)
			player, err := parsePlayerRow(row)
			if err != nil {
				return fmt.Errorf("team %d player %d: %w", team, i, err)
			}
			players = append(players, player)
		}
		match.Teams[team] = players
	}

	return nil
}

func parseScore(text string) (int, int, error) {
	parts := strings.Split(text, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed score %q", text)
	}
	a, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed score %q: %w", text, err)
	}
	b, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed score %q: %w", text, err)
	}
	return a, b, nil
}

func parsePlayerRow(row *goquery.Selection) (PlayerStat, error) {
	cells := row.Find("td")
	if cells.Length() < 8 {
		return PlayerStat{}, fmt.Errorf("player row has %d cells, want 8", cells.Length())
	}

	link := cells.Eq(0).Find("a.linkTitle").First()
	if link.Length() == 0 {
		return PlayerStat{}, fmt.Errorf("player row has no profile link")
	}
	avatar := cells.Eq(0).Find("img").First()

	id, err := steamid.FromMiniProfile(avatar.AttrOr("data-miniprofile", ""))
	if err != nil {
		return PlayerStat{}, err
	}

	kills, err := cellInt(cells.Eq(2))
	if err != nil {
		return PlayerStat{}, fmt.Errorf("kills: %w", err)
	}
	assists, err := cellInt(cells.Eq(3))
	if err != nil {
		return PlayerStat{}, fmt.Errorf("assists: %w", err)
	}
	deaths, err := cellInt(cells.Eq(4))
	if err != nil {
		return PlayerStat{}, fmt.Errorf("deaths: %w", err)
	}
	score, err := cellInt(cells.Eq(7))
	if err != nil {
		return PlayerStat{}, fmt.Errorf("score: %w", err)
	}

	return PlayerStat{
		Name:       htmlutil.CleanText(link),
		ProfileURL: link.AttrOr("href", ""),
		SteamID:    id,
		AvatarURL:  avatar.AttrOr("src", ""),

		Ping:    cellDigits(cells.Eq(1)),
		Kills:   kills,
		Assists: assists,
		Deaths:  deaths,
		// the mvp and headshot cells are decorative, digits are optional
		MVPs:            cellDigits(cells.Eq(5)),
		HeadshotPercent: cellDigits(cells.Eq(6)),
		Score:           score,
	}, nil
}

func cellInt(cell *goquery.Selection) (int, error) {
	return strconv.Atoi(htmlutil.CleanText(cell))
}

func cellDigits(cell *goquery.Selection) int {
	digits := digitsPattern.FindString(htmlutil.CleanText(cell))
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

func deriveOutcome(scoreA, scoreB int, teams [2]Team, self steamid.SteamID) Outcome {
	if scoreA == scoreB {
		return OutcomeDraw
	}

	ownTeam := -1
	for i, team := range teams {
		for _, player := range team {
			if player.SteamID == self {
				ownTeam = i
			}
		}
	}
	if ownTeam == -1 {
		return OutcomeDraw
	}

	firstTeamWon := scoreA > scoreB
	if (ownTeam == 0) == firstTeamWon {
		return OutcomeWin
	}
	return OutcomeLoss
}
