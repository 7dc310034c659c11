package csgo

import (
	"context"
	"fmt"
	"strings"

	"cswatch-backend/lib/scrapers/steam/steamid"
	"cswatch-backend/lib/scrapers/steam/webapi"
	"cswatch-backend/lib/scrapers/steam/webauth"
	"cswatch-backend/lib/telemetry"

	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("scrapers/csgo")

// Client scrapes the game coordinator pages of the authenticated
// account. API is nil until LoadAPIKey succeeds; a nil API puts the
// client in limited mode, where ban lookups are skipped rather than
// failed.
type Client struct {
	Session    *webauth.Client
	API        *webapi.Client
	ProfileURL string
	APIKey     string
	// base url of the json api hostname, overridable for tests
	APIBaseURL string
}

// NewClient discovers the community profile url of the authenticated
// identity by following the canonical-profile redirect.
func NewClient(ctx context.Context, session *webauth.Client) (*Client, error) {
	ctx, span := tracer.Start(ctx, "NewClient")
	defer span.End()

	res, err := session.Get(ctx, session.CommunityURL+session.SteamID.ProfilePath(), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to discover profile url")
		return nil, fmt.Errorf("discover profile url: %w", err)
	}

	profileUrl := res.RawResponse.Request.URL.String()
	if strings.Contains(profileUrl, "/home/") {
		profileUrl = strings.Replace(profileUrl, "/home/", "/", 1)
	}
	if !strings.HasSuffix(profileUrl, "/") {
		profileUrl += "/"
	}

	return &Client{
		Session:    session,
		ProfileURL: profileUrl,
	}, nil
}

func (c *Client) Limited() bool {
	return c.API == nil
}

func (c *Client) SteamID() steamid.SteamID {
	return c.Session.SteamID
}
