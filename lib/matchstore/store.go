package matchstore

import (
	"context"
	"database/sql"
	"time"

	"cswatch-backend/lib/matchstore/db"
	"cswatch-backend/lib/scrapers/csgo"
	"cswatch-backend/lib/scrapers/steam/steamid"
	"cswatch-backend/lib/timezone"

	_ "modernc.org/sqlite"
)

// Store persists harvested matches keyed by the harvesting account,
// the game mode and the match date. The newest stored date per mode is
// the freshness boundary for incremental harvesting.
type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

// Open opens a sqlite database at the given path and applies the
// schema. Pass ":memory:" for an ephemeral store.
func Open(path string) (Store, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return Store{}, err
	}
	_, err = database.Exec(db.Schema)
	if err != nil {
		database.Close()
		return Store{}, err
	}
	return NewStore(database), nil
}

// Push upserts the given matches for one owning account. A match seen
// again replaces the stored copy wholesale, player rows included.
func (s Store) Push(ctx context.Context, owner steamid.SteamID, matches []csgo.Match) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, match := range matches {
		date := match.Date.Unix()

		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO matches
			(owner, mode, date, map, search_seconds, play_seconds,
			 replay_url, score_a, score_b, outcome)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(owner), string(match.Mode), date, match.Map,
			int64(match.SearchDuration/time.Second),
			int64(match.PlayDuration/time.Second),
			match.ReplayURL, match.ScoreA, match.ScoreB, int(match.Outcome),
		)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM match_players WHERE owner = ? AND mode = ? AND date = ?`,
			int64(owner), string(match.Mode), date,
		)
		if err != nil {
			return err
		}

		for team, players := range match.Teams {
			for position, player := range players {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO match_players
					(owner, mode, date, team, position, steamid, name,
					 profile_url, avatar_url, ping, kills, assists, deaths,
					 mvps, headshot_percent, score)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					int64(owner), string(match.Mode), date, team, position,
					int64(player.SteamID), player.Name,
					player.ProfileURL, player.AvatarURL,
					player.Ping, player.Kills, player.Assists, player.Deaths,
					player.MVPs, player.HeadshotPercent, player.Score,
				)
				if err != nil {
					return err
				}
			}
		}
	}

	return tx.Commit()
}

// LatestMatchDate reports the newest stored match date for a mode, or
// nil when nothing is stored yet.
func (s Store) LatestMatchDate(ctx context.Context, owner steamid.SteamID, mode csgo.GameMode) (*time.Time, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT MAX(date) FROM matches WHERE owner = ? AND mode = ?`,
		int64(owner), string(mode),
	)
	var unix sql.NullInt64
	err := row.Scan(&unix)
	if err != nil {
		return nil, err
	}
	if !unix.Valid {
		return nil, nil
	}
	date := time.Unix(unix.Int64, 0).In(timezone.Location)
	return &date, nil
}

// Matches returns the stored matches of one mode, newest first.
func (s Store) Matches(ctx context.Context, owner steamid.SteamID, mode csgo.GameMode) ([]csgo.Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, map, search_seconds, play_seconds,
		       replay_url, score_a, score_b, outcome
		FROM matches
		WHERE owner = ? AND mode = ?
		ORDER BY date DESC`,
		int64(owner), string(mode),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []csgo.Match
	for rows.Next() {
		var date, searchSeconds, playSeconds int64
		var outcome int
		match := csgo.Match{Mode: mode}
		err := rows.Scan(
			&date, &match.Map, &searchSeconds, &playSeconds,
			&match.ReplayURL, &match.ScoreA, &match.ScoreB, &outcome,
		)
		if err != nil {
			return nil, err
		}
		match.Date = time.Unix(date, 0).In(timezone.Location)
		match.SearchDuration = time.Duration(searchSeconds) * time.Second
		match.PlayDuration = time.Duration(playSeconds) * time.Second
		match.Outcome = csgo.Outcome(outcome)
		matches = append(matches, match)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}

	for i := range matches {
		teams, err := s.matchPlayers(ctx, owner, mode, matches[i].Date.Unix())
		if err != nil {
			return nil, err
		}
		matches[i].Teams = teams
	}
	return matches, nil
}

func (s Store) matchPlayers(ctx context.Context, owner steamid.SteamID, mode csgo.GameMode, date int64) ([2]csgo.Team, error) {
	var teams [2]csgo.Team

	rows, err := s.db.QueryContext(ctx, `
		SELECT team, steamid, name, profile_url, avatar_url,
		       ping, kills, assists, deaths, mvps, headshot_percent, score
		FROM match_players
		WHERE owner = ? AND mode = ? AND date = ?
		ORDER BY team, position`,
		int64(owner), string(mode), date,
	)
	if err != nil {
		return teams, err
	}
	defer rows.Close()

	for rows.Next() {
		var team int
		var id int64
		var player csgo.PlayerStat
		err := rows.Scan(
			&team, &id, &player.Name, &player.ProfileURL, &player.AvatarURL,
			&player.Ping, &player.Kills, &player.Assists, &player.Deaths,
			&player.MVPs, &player.HeadshotPercent, &player.Score,
		)
		if err != nil {
			return teams, err
		}
		if team < 0 || team > 1 {
			continue
		}
		player.SteamID = steamid.SteamID(id)
		teams[team] = append(teams[team], player)
	}
	return teams, rows.Err()
}
