package commands

import (
	"fmt"
	"log/slog"
	"os"

	"cswatch-backend/lib/configutil"
	"cswatch-backend/lib/matchstore"
	"cswatch-backend/lib/restyutil"
	"cswatch-backend/lib/scrapers/csgo"
	"cswatch-backend/lib/scrapers/steam/webauth"
	"cswatch-backend/lib/serviceutil"
	"cswatch-backend/services/tracker"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type Config struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

var fetchDb *string

func init() {
	fetchDb = fetchCmd.Flags().String("db", "matches.db", "The database harvested matches are stored in.")
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [--db <path/to/matches.db>]",
	Short: "Logs in, harvests new matches of every mode and annotates them with participant bans.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cfg, err := configutil.ReadConfig[Config]("config.json5")
		if err != nil {
			slog.Warn("no usable config, prompting for credentials", "err", err)
		}

		webauth.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/cswatch"))
		session := login(ctx, cfg.Username, cfg.Password)
		slog.Info("logged on", "steamid", session.SteamID.String())

		client, err := csgo.NewClient(ctx, session)
		if err != nil {
			serviceutil.Fatal("failed to resolve profile url", err)
		}

		store, err := matchstore.Open(*fetchDb)
		if err != nil {
			serviceutil.Fatal("failed to open match store", err)
		}

		report, err := tracker.NewService(client, store).Scrape(ctx)
		if err != nil {
			serviceutil.Fatal("failed to scrape", err)
		}

		renderReport(report)
	},
}

func outcomeLabel(outcome csgo.Outcome) string {
	switch outcome {
	case csgo.OutcomeWin:
		return "win"
	case csgo.OutcomeLoss:
		return "loss"
	default:
		return "draw"
	}
}

func renderReport(report tracker.Report) {
	profile := table.NewWriter()
	profile.SetOutputMirror(os.Stdout)
	profile.AppendHeader(table.Row{"Name", "Real Name", "Country", "Level", "Status"})
	profile.AppendRow(table.Row{
		report.Profile.Name, report.Profile.RealName,
		report.Profile.Country, report.Profile.Level, report.Profile.Status,
	})
	profile.Render()

	if len(report.Ranks) > 0 {
		ranks := table.NewWriter()
		ranks.SetOutputMirror(os.Stdout)
		ranks.AppendHeader(table.Row{"Mode", "Wins", "Draws", "Losses", "Skill Group", "Last Game"})
		for _, rank := range report.Ranks {
			ranks.AppendRow(table.Row{
				rank.Mode, rank.Wins, rank.Draws, rank.Losses, rank.Rank, rank.LastGame,
			})
		}
		ranks.Render()
	}

	if report.Cooldown != nil {
		slog.Warn(
			"account has an active competitive cooldown",
			"expires", report.Cooldown.Expiration,
			"level", report.Cooldown.Level,
		)
	}
	if report.OwnBan != nil {
		slog.Warn(
			"the account itself carries a ban",
			"vac", report.OwnBan.VACBanned,
			"game_bans", report.OwnBan.GameBans,
			"days_since", report.OwnBan.DaysSinceLastBan,
		)
	}
	if report.Limited {
		slog.Warn("limited account, matches were not annotated with bans")
	}

	matches := table.NewWriter()
	matches.SetOutputMirror(os.Stdout)
	matches.AppendHeader(table.Row{"Mode", "Map", "Date", "Score", "Outcome", "Banned Players", "Banned After"})
	for _, mode := range csgo.Modes {
		for _, match := range report.Matches[mode] {
			bannedAfter := 0
			for _, ban := range match.Bans {
				if ban.AfterMatch != nil && *ban.AfterMatch {
					bannedAfter++
				}
			}
			matches.AppendRow(table.Row{
				string(match.Mode), match.Map, match.Date.Format("2006-01-02 15:04"),
				fmt.Sprintf("%d : %d", match.ScoreA, match.ScoreB),
				outcomeLabel(match.Outcome), len(match.Bans), bannedAfter,
			})
		}
	}
	matches.Render()
}
