package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cswatch-backend/lib/scrapers/steam/steamid"
	"cswatch-backend/lib/scrapers/steam/webauth"
	"cswatch-backend/lib/telemetry"

	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("scrapers/steam/webapi")

// Client calls the provider's JSON API. All traffic still goes through
// the authorized session so cookie re-assertion stays in one place.
type Client struct {
	Session *webauth.Client
	BaseURL string
	Key     string
}

func NewClient(session *webauth.Client, key string) *Client {
	return &Client{
		Session: session,
		BaseURL: "https://api.steampowered.com",
		Key:     key,
	}
}

func joinIds(ids []steamid.SteamID) string {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	return strings.Join(strs, ",")
}

// PlayerBans is the point-in-time penalty snapshot for one account.
// Field names follow the upstream response.
type PlayerBans struct {
	SteamID          string `json:"SteamId"`
	CommunityBanned  bool   `json:"CommunityBanned"`
	VACBanned        bool   `json:"VACBanned"`
	NumberOfVACBans  int    `json:"NumberOfVACBans"`
	DaysSinceLastBan int    `json:"DaysSinceLastBan"`
	NumberOfGameBans int    `json:"NumberOfGameBans"`
	EconomyBan       string `json:"EconomyBan"`
}

func (c *Client) GetPlayerBans(ctx context.Context, ids []steamid.SteamID) ([]PlayerBans, error) {
	ctx, span := tracer.Start(ctx, "client:GetPlayerBans")
	defer span.End()

	res, err := c.Session.Get(ctx, c.BaseURL+"/ISteamUser/GetPlayerBans/v1/", map[string]string{
		"key":      c.Key,
		"steamids": joinIds(ids),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch player bans")
		return nil, fmt.Errorf("fetch player bans: %w", err)
	}

	var resp struct {
		Players []PlayerBans `json:"players"`
	}
	err = json.Unmarshal(res.Body(), &resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode player bans")
		return nil, fmt.Errorf("decode player bans: %w", err)
	}
	return resp.Players, nil
}

type PlayerSummary struct {
	SteamID     string `json:"steamid"`
	PersonaName string `json:"personaname"`
	ProfileURL  string `json:"profileurl"`
	Avatar      string `json:"avatarfull"`
	PersonaState int   `json:"personastate"`
	CountryCode string `json:"loccountrycode"`
}

func (c *Client) GetPlayerSummaries(ctx context.Context, ids []steamid.SteamID) ([]PlayerSummary, error) {
	ctx, span := tracer.Start(ctx, "client:GetPlayerSummaries")
	defer span.End()

	res, err := c.Session.Get(ctx, c.BaseURL+"/ISteamUser/GetPlayerSummaries/v2/", map[string]string{
		"key":      c.Key,
		"steamids": joinIds(ids),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch player summaries")
		return nil, fmt.Errorf("fetch player summaries: %w", err)
	}

	var resp struct {
		Response struct {
			Players []PlayerSummary `json:"players"`
		} `json:"response"`
	}
	err = json.Unmarshal(res.Body(), &resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode player summaries")
		return nil, fmt.Errorf("decode player summaries: %w", err)
	}
	return resp.Response.Players, nil
}

// ResolveVanityURL turns a custom profile name into a steam64 id.
func (c *Client) ResolveVanityURL(ctx context.Context, vanity string) (steamid.SteamID, error) {
	ctx, span := tracer.Start(ctx, "client:ResolveVanityURL")
	defer span.End()

	res, err := c.Session.Get(ctx, c.BaseURL+"/ISteamUser/ResolveVanityURL/v1/", map[string]string{
		"key":       c.Key,
		"vanityurl": vanity,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve vanity url")
		return 0, fmt.Errorf("resolve vanity url: %w", err)
	}

	var resp struct {
		Response struct {
			Success int    `json:"success"`
			SteamID string `json:"steamid"`
		} `json:"response"`
	}
	err = json.Unmarshal(res.Body(), &resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode vanity url response")
		return 0, fmt.Errorf("decode vanity url response: %w", err)
	}
	if resp.Response.Success != 1 {
		return 0, fmt.Errorf("no match for vanity url %q", vanity)
	}
	return steamid.Parse(resp.Response.SteamID)
}
