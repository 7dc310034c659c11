package csgo

import (
	"fmt"
	"strings"
	"time"

	"cswatch-backend/lib/scrapers/steam/steamid"
	"cswatch-backend/lib/timezone"
)

// GameMode is one of the two matchmaking formats with a fixed team size.
type GameMode string

const (
	ModeCompetitive GameMode = "competitive"
	ModeWingman     GameMode = "wingman"
)

var Modes = []GameMode{ModeCompetitive, ModeWingman}

func (m GameMode) PlayerCount() int {
	if m == ModeWingman {
		return 2
	}
	return 5
}

// historyTab is the pagination endpoint tag for the mode
func (m GameMode) historyTab() string {
	if m == ModeWingman {
		return "matchhistorywingman"
	}
	return "matchhistorycompetitive"
}

type Outcome int

const (
	OutcomeLoss Outcome = -1
	OutcomeDraw Outcome = 0
	OutcomeWin  Outcome = 1
)

type PlayerStat struct {
	Name       string
	ProfileURL string
	SteamID    steamid.SteamID
	AvatarURL  string

	Ping    int
	Kills   int
	Assists int
	Deaths  int
	// defaults to zero when the cell carries no digits
	MVPs            int
	HeadshotPercent int
	Score           int
}

type Team []PlayerStat

// Match is one parsed match block, immutable once parsed.
type Match struct {
	Mode GameMode
	Map  string
	Date time.Time

	SearchDuration time.Duration
	PlayDuration   time.Duration
	ReplayURL      string

	ScoreA int
	ScoreB int
	Teams  [2]Team

	// win/loss is relative to the authenticated identity's team
	Outcome Outcome
}

const dateLayout = "2006-01-02 15:04:05"

// ParseDate decodes a provider timestamp, stripping the "GMT" suffix
// and surrounding whitespace.
func ParseDate(raw string) (time.Time, error) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(raw, "GMT", ""))
	t, err := time.ParseInLocation(dateLayout, cleaned, timezone.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse match date %q: %w", raw, err)
	}
	return t, nil
}
