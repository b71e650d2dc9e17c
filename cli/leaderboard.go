package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/butykaidavid/read-rival-quest/models"
	"github.com/butykaidavid/read-rival-quest/services"
)

var (
	flagMetric   string
	flagPeriod   string
	flagGenre    string
	flagLimit    int
	flagSnapshot bool
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Inspect and recompute leaderboards",
}

var leaderboardComputeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute a live ranking, or store snapshots of every board with --snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		boards := services.NewLeaderboardService(db)

		if flagSnapshot {
			n, err := boards.SnapshotAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%s Stored %d leaderboard row(s)\n", color.GreenString("✓"), n)
			return nil
		}

		entries, err := boards.ComputeLeaderboard(cmd.Context(), models.LeaderboardMetric(flagMetric), models.LeaderboardPeriod(flagPeriod), flagGenre)
		if err != nil {
			return err
		}
		printBoard(entries, flagLimit)
		return nil
	},
}

func printBoard(entries []models.LeaderboardEntry, limit int) {
	if len(entries) == 0 {
		fmt.Println(color.YellowString("No ranked readers for this window"))
		return
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	fmt.Printf("%-6s %-32s %s\n", "RANK", "READER", "VALUE")
	fmt.Println(strings.Repeat("-", 50))
	for _, e := range entries {
		rank := fmt.Sprintf("#%d", e.RankPosition)
		if e.RankPosition <= 3 {
			rank = color.YellowString("%-6s", rank)
		} else {
			rank = fmt.Sprintf("%-6s", rank)
		}
		name := e.DisplayName
		if name == "" {
			name = e.UserID
		}
		fmt.Printf("%s %-32s %s\n", rank, name, color.CyanString("%d", e.Value))
	}
}

func init() {
	leaderboardComputeCmd.Flags().StringVar(&flagMetric, "metric", string(models.MetricPages), "pages, books, streak or points")
	leaderboardComputeCmd.Flags().StringVar(&flagPeriod, "period", string(models.PeriodWeekly), "weekly, monthly or all_time")
	leaderboardComputeCmd.Flags().StringVar(&flagGenre, "genre", "", "Only count books in this genre")
	leaderboardComputeCmd.Flags().IntVar(&flagLimit, "limit", 20, "Rows to print (0 for all)")
	leaderboardComputeCmd.Flags().BoolVar(&flagSnapshot, "snapshot", false, "Recompute and store every board")
	leaderboardCmd.AddCommand(leaderboardComputeCmd)
}
