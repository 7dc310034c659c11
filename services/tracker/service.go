package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cswatch-backend/lib/matchstore"
	"cswatch-backend/lib/scrapers/csgo"
	"cswatch-backend/lib/scrapers/steam/steamid"
	"cswatch-backend/lib/telemetry"
	"cswatch-backend/lib/timezone"

	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("services/tracker")

// Service drives one full harvesting pass for an authenticated account
// and persists what it finds.
type Service struct {
	client *csgo.Client
	store  matchstore.Store
}

func NewService(client *csgo.Client, store matchstore.Store) Service {
	return Service{client: client, store: store}
}

type AnnotatedMatch struct {
	csgo.Match
	// correlations for the banned participants; empty in limited mode
	Bans []BanCorrelation
}

type Report struct {
	Profile  csgo.Profile
	Ranks    []csgo.MatchmakingRank
	Cooldown *csgo.Cooldown
	// the harvesting account's own penalty record, nil when clean or
	// when ban lookups are unavailable
	OwnBan  *BanCorrelation
	Matches map[csgo.GameMode][]AnnotatedMatch
	// a limited account cannot hold an api key, so ban lookups are
	// skipped rather than failed
	Limited bool
}

// Scrape harvests the account summary, the skill group tables and all
// matches newer than what the store already holds, annotating each new
// match with the ban records of its participants.
func (s Service) Scrape(ctx context.Context) (Report, error) {
	ctx, span := tracer.Start(ctx, "service:Scrape")
	defer span.End()

	report := Report{Matches: map[csgo.GameMode][]AnnotatedMatch{}}

	_, err := s.client.LoadAPIKey(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load api key")
		return report, fmt.Errorf("load api key: %w", err)
	}
	report.Limited = s.client.Limited()
	if report.Limited {
		slog.InfoContext(ctx, "account cannot hold an api key, skipping ban lookups")
	}

	report.Profile, err = s.client.LoadProfile(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load profile")
		return report, fmt.Errorf("load profile: %w", err)
	}
	report.Ranks, err = s.client.LoadMatchmakingRanks(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load matchmaking ranks")
		return report, fmt.Errorf("load matchmaking ranks: %w", err)
	}
	report.Cooldown, err = s.client.LoadCooldown(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load cooldown")
		return report, fmt.Errorf("load cooldown: %w", err)
	}

	now := timezone.Now()
	if !report.Limited {
		bans, err := s.client.API.GetPlayerBans(ctx, []steamid.SteamID{s.client.SteamID()})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch own bans")
			return report, fmt.Errorf("fetch own bans: %w", err)
		}
		if len(bans) > 0 {
			report.OwnBan = CorrelateBan(bans[0], nil, now)
		}
	}

	for _, mode := range csgo.Modes {
		since, err := s.store.LatestMatchDate(ctx, s.client.SteamID(), mode)
		if err != nil {
			span.RecordError(err)
			return report, fmt.Errorf("latest stored %s date: %w", mode, err)
		}

		matches, err := s.client.FetchMatches(ctx, mode, since)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch matches")
			return report, fmt.Errorf("fetch %s matches: %w", mode, err)
		}
		slog.InfoContext(ctx, "harvested matches", "mode", mode, "count", len(matches))

		err = s.store.Push(ctx, s.client.SteamID(), matches)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to store matches")
			return report, fmt.Errorf("store %s matches: %w", mode, err)
		}

		annotated := make([]AnnotatedMatch, len(matches))
		for i, match := range matches {
			annotated[i] = AnnotatedMatch{Match: match}
			if report.Limited {
				continue
			}
			bans, err := s.annotateMatch(ctx, match, now)
			if err != nil {
				span.RecordError(err)
				return report, fmt.Errorf("annotate %s match: %w", mode, err)
			}
			annotated[i].Bans = bans
		}
		report.Matches[mode] = annotated
	}

	return report, nil
}

// annotateMatch batch-queries the ban records of every participant and
// keeps the correlations of the banned ones.
func (s Service) annotateMatch(ctx context.Context, match csgo.Match, now time.Time) ([]BanCorrelation, error) {
	var ids []steamid.SteamID
	for _, team := range match.Teams {
		for _, player := range team {
			ids = append(ids, player.SteamID)
		}
	}

	bans, err := s.client.API.GetPlayerBans(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch participant bans: %w", err)
	}

	var correlations []BanCorrelation
	for _, ban := range bans {
		if correlation := CorrelateBan(ban, &match.Date, now); correlation != nil {
			correlations = append(correlations, *correlation)
		}
	}
	return correlations, nil
}
