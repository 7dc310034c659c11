package csgo

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"cswatch-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

type Profile struct {
	Name      string
	RealName  string
	Country   string
	AvatarURL string
	Level     string
	Status    string
}

var wordPattern = regexp.MustCompile(`\w+`)

// LoadProfile scrapes the account's own community profile page. A
// fresh account that never set a profile up yields the zero Profile.
func (c *Client) LoadProfile(ctx context.Context) (Profile, error) {
	ctx, span := tracer.Start(ctx, "client:LoadProfile")
	defer span.End()

	res, err := c.Session.Get(ctx, c.ProfileURL, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch profile")
		return Profile{}, fmt.Errorf("fetch profile: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse profile")
		return Profile{}, fmt.Errorf("parse profile: %w", err)
	}

	if doc.Find("div.welcome_header_ctn").Length() > 0 {
		return Profile{}, nil
	}

	profile := Profile{
		Name:      htmlutil.CleanText(doc.Find("span.actual_persona_name").First()),
		RealName:  htmlutil.CleanText(doc.Find("div.header_real_name bdi").First()),
		AvatarURL: doc.Find("div.playerAvatarAutoSizeInner img").First().AttrOr("src", ""),
		Level:     htmlutil.CleanText(doc.Find("span.friendPlayerLevelNum").First()),
	}

	// the country flag only renders when the account set a location;
	// the country code is the second-to-last word of the image url
	flag := doc.Find("div.header_real_name img").First()
	if src := flag.AttrOr("src", ""); src != "" {
		words := wordPattern.FindAllString(src, -1)
		if len(words) >= 2 {
			profile.Country = words[len(words)-2]
		}
	}

	// online status is the last class of the avatar container
	classes := strings.Fields(doc.Find("div.playerAvatar").First().AttrOr("class", ""))
	if len(classes) > 0 {
		profile.Status = classes[len(classes)-1]
	}

	return profile, nil
}

type MatchmakingRank struct {
	Mode     string
	Wins     string
	Draws    string
	Losses   string
	Rank     string
	LastGame string
}

// LoadMatchmakingRanks scrapes the per-mode skill group table from the
// game coordinator's personal data page.
func (c *Client) LoadMatchmakingRanks(ctx context.Context) ([]MatchmakingRank, error) {
	ctx, span := tracer.Start(ctx, "client:LoadMatchmakingRanks")
	defer span.End()

	doc, err := c.personalDataPage(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load personal data page")
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	var ranks []MatchmakingRank
	doc.Find("table.generic_kv_table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		header := table.Find("tr").First().Text()
		if !strings.Contains(header, "Matchmaking Mode") || !strings.Contains(header, "Skill Group") {
			return true
		}

		table.Find("tr").Slice(1, goquery.ToEnd).Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() < 6 {
				return
			}
			ranks = append(ranks, MatchmakingRank{
				Mode:     htmlutil.CleanText(cells.Eq(0)),
				Wins:     htmlutil.CleanText(cells.Eq(1)),
				Draws:    htmlutil.CleanText(cells.Eq(2)),
				Losses:   htmlutil.CleanText(cells.Eq(3)),
				Rank:     htmlutil.CleanText(cells.Eq(4)),
				LastGame: strings.TrimSpace(strings.ReplaceAll(htmlutil.CleanText(cells.Eq(5)), "GMT", "")),
			})
		})
		return false
	})

	return ranks, nil
}

type Cooldown struct {
	Expiration string
	Level      string
}

// LoadCooldown scrapes the active competitive cooldown, if any.
func (c *Client) LoadCooldown(ctx context.Context) (*Cooldown, error) {
	ctx, span := tracer.Start(ctx, "client:LoadCooldown")
	defer span.End()

	doc, err := c.personalDataPage(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load personal data page")
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	var cooldown *Cooldown
	doc.Find("table.generic_kv_table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		if !strings.Contains(table.Find("tr").First().Text(), "Competitive Cooldown Expiration") {
			return true
		}
		cells := table.Find("tr").Eq(1).Find("td")
		if cells.Length() < 2 {
			return true
		}
		cooldown = &Cooldown{
			Expiration: htmlutil.CleanText(cells.Eq(0)),
			Level:      htmlutil.CleanText(cells.Eq(1)),
		}
		return false
	})

	return cooldown, nil
}

// personalDataPage fetches gcpd's matchmaking tab; nil means the page
// has no personal data container (private or empty account)
func (c *Client) personalDataPage(ctx context.Context) (*goquery.Document, error) {
	res, err := c.Session.Get(ctx, c.ProfileURL+"gcpd/730/", map[string]string{
		"tab": "matchmaking",
	})
	if err != nil {
		return nil, fmt.Errorf("fetch personal data page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse personal data page: %w", err)
	}
	if doc.Find("div#personaldata_elements_container").Length() == 0 {
		return nil, nil
	}
	return doc, nil
}
