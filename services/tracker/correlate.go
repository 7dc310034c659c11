package tracker

import (
	"time"

	"cswatch-backend/lib/scrapers/steam/webapi"
)

// BanCorrelation relates an account's penalty record to a match date.
type BanCorrelation struct {
	SteamID          string
	VACBanned        bool
	VACBans          int
	GameBans         int
	DaysSinceLastBan int
	// the most recent ban, reconstructed at day resolution
	LastBan time.Time
	// AfterMatch reports whether the most recent ban landed after the
	// match. Nil when no match date is known.
	AfterMatch *bool
}

// CorrelateBan derives the correlation for one account, or nil when
// the account carries neither a VAC nor a game ban.
//
// The ban date is only known as a whole number of days before `now`,
// so the comparison is strict: a ban on the same day as the match
// counts as not-after, since the upstream data cannot order events
// within a day.
func CorrelateBan(ban webapi.PlayerBans, matchDate *time.Time, now time.Time) *BanCorrelation {
	if !ban.VACBanned && ban.NumberOfGameBans == 0 {
		return nil
	}

	lastBan := now.Add(-time.Duration(ban.DaysSinceLastBan) * 24 * time.Hour)
	correlation := &BanCorrelation{
		SteamID:          ban.SteamID,
		VACBanned:        ban.VACBanned,
		VACBans:          ban.NumberOfVACBans,
		GameBans:         ban.NumberOfGameBans,
		DaysSinceLastBan: ban.DaysSinceLastBan,
		LastBan:          lastBan,
	}
	if matchDate != nil {
		after := lastBan.After(*matchDate)
		correlation.AfterMatch = &after
	}
	return correlation
}
