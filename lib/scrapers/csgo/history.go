package csgo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// the provider is inconsistent about whether the continuation token
// comes back as a JSON number or string; absence or null both mean the
// feed is exhausted
type continueToken string

func (t *continueToken) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = ""
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*t = continueToken(asString)
		return nil
	}
	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err != nil {
		return err
	}
	*t = continueToken(asNumber.String())
	return nil
}

type historyPage struct {
	Success       bool          `json:"success"`
	HTML          string        `json:"html"`
	ContinueToken continueToken `json:"continue_token"`
}

// FetchMatches walks the paginated history of one game mode until the
// continuation cursor is exhausted. When `since` is given, only
// records strictly newer than it are returned.
//
// Transport failures surface as errors. A page that is not decodable
// as the expected payload aborts the crawl and yields the empty result
// for the whole call: partial pages are not trusted.
func (c *Client) FetchMatches(ctx context.Context, mode GameMode, since *time.Time) ([]Match, error) {
	ctx, span := tracer.Start(ctx, "client:FetchMatches")
	defer span.End()
	span.SetAttributes(attribute.String("mode", string(mode)))

	cursor := "0"
	seen := map[string]bool{cursor: true}
	var matches []Match

	for {
		res, err := c.Session.Get(ctx, c.ProfileURL+"gcpd/730/", map[string]string{
			"ajax":           "1",
			"tab":            mode.historyTab(),
			"continue_token": cursor,
			"sessionid":      c.Session.SessionID,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch history page")
			return nil, fmt.Errorf("fetch history page: %w", err)
		}

		var page historyPage
		err = json.Unmarshal(res.Body(), &page)
		if err != nil || page.HTML == "" {
			span.SetStatus(codes.Error, "malformed history page")
			slog.WarnContext(
				ctx, "malformed history page, aborting crawl",
				"mode", mode,
				"cursor", cursor,
				"err", err,
			)
			return nil, nil
		}

		records, err := ParseMatches(ctx, page.HTML, mode, c.Session.SteamID)
		if err != nil {
			span.RecordError(err)
			slog.WarnContext(ctx, "unparseable history page, aborting crawl", "err", err)
			return nil, nil
		}
		for _, record := range records {
			if since == nil || record.Date.After(*since) {
				matches = append(matches, record)
			}
		}

		next := string(page.ContinueToken)
		if next == "" {
			break
		}
		if seen[next] {
			slog.WarnContext(ctx, "repeated continuation cursor, stopping crawl", "cursor", next)
			break
		}
		seen[next] = true
		cursor = next
	}

	return matches, nil
}
