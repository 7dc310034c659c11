package csgo

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"cswatch-backend/lib/scrapers/steam/webapi"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

// the domain name the key is registered under when the account has
// none yet
const apiKeyDomain = "cswatch"

// LoadAPIKey scrapes the account's web api key, registering one when
// the account is allowed to but has none. A ("", nil) return means the
// account cannot hold a key at all; the client then stays in limited
// mode and callers skip ban lookups.
func (c *Client) LoadAPIKey(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "client:LoadAPIKey")
	defer span.End()

	for attempt := 0; attempt < 2; attempt++ {
		key, registerable, err := c.scrapeAPIKey(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to scrape api key page")
			return "", err
		}
		if key != "" {
			c.APIKey = key
			c.API = webapi.NewClient(c.Session, key)
			if c.APIBaseURL != "" {
				c.API.BaseURL = c.APIBaseURL
			}
			return key, nil
		}
		if !registerable {
			span.SetStatus(codes.Ok, "account cannot register an api key")
			return "", nil
		}

		_, err = c.Session.PostForm(ctx, c.Session.CommunityURL+"/dev/registerkey", map[string]string{
			"domain":       apiKeyDomain,
			"agreeToTerms": "agreed",
			"sessionid":    c.Session.SessionID,
			"Submit":       "Register",
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to register api key")
			return "", fmt.Errorf("register api key: %w", err)
		}
	}

	return "", fmt.Errorf("api key still missing after registration")
}

// scrapeAPIKey reads the key management page. Returns the existing key
// if one is shown, otherwise whether registering one is possible.
func (c *Client) scrapeAPIKey(ctx context.Context) (key string, registerable bool, err error) {
	res, err := c.Session.Get(ctx, c.Session.CommunityURL+"/dev/apikey", nil)
	if err != nil {
		return "", false, fmt.Errorf("fetch api key page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return "", false, fmt.Errorf("parse api key page: %w", err)
	}

	// this container only renders for accounts barred from holding a key
	if doc.Find("div#bodyContents_lo").Length() > 0 {
		return "", false, nil
	}

	if doc.Find("input[name=Revoke]").Length() > 0 {
		text := strings.TrimSpace(doc.Find("div#bodyContents_ex p").First().Text())
		fields := strings.Fields(text)
		if len(fields) < 2 {
			return "", false, fmt.Errorf("malformed api key text %q", text)
		}
		return fields[1], false, nil
	}

	return "", true, nil
}
