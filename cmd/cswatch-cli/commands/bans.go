package commands

import (
	"os"

	"cswatch-backend/lib/scrapers/steam/steamid"
	"cswatch-backend/lib/scrapers/steam/webapi"
	"cswatch-backend/lib/scrapers/steam/webauth"
	"cswatch-backend/lib/serviceutil"
	"cswatch-backend/lib/timezone"
	"cswatch-backend/services/tracker"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var bansKey *string

func init() {
	bansKey = bansCmd.Flags().String("key", "", "The web api key to authenticate lookups with.")
	bansCmd.MarkFlagRequired("key")
	rootCmd.AddCommand(bansCmd)
}

var bansCmd = &cobra.Command{
	Use:   "bans --key <api key> <steamid64>...",
	Short: "Looks up the ban records of the given accounts without logging in.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		ids := make([]steamid.SteamID, len(args))
		for i, arg := range args {
			id, err := steamid.Parse(arg)
			if err != nil {
				serviceutil.Fatal("failed to parse steamid", err)
			}
			ids[i] = id
		}

		session, err := webauth.NewClient()
		if err != nil {
			serviceutil.Fatal("failed to initialize session client", err)
		}
		api := webapi.NewClient(session, *bansKey)

		bans, err := api.GetPlayerBans(ctx, ids)
		if err != nil {
			serviceutil.Fatal("failed to fetch bans", err)
		}

		now := timezone.Now()
		out := table.NewWriter()
		out.SetOutputMirror(os.Stdout)
		out.AppendHeader(table.Row{"SteamID", "VAC", "VAC Bans", "Game Bans", "Days Since Last Ban", "Last Ban"})
		for _, ban := range bans {
			correlation := tracker.CorrelateBan(ban, nil, now)
			if correlation == nil {
				out.AppendRow(table.Row{ban.SteamID, false, 0, 0, "", "clean"})
				continue
			}
			out.AppendRow(table.Row{
				correlation.SteamID, correlation.VACBanned, correlation.VACBans,
				correlation.GameBans, correlation.DaysSinceLastBan,
				correlation.LastBan.Format("2006-01-02"),
			})
		}
		out.Render()
	},
}
