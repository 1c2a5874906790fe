package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/checkpoint-tracker/internal/normalize"
)

func init() {
	cmd := &cobra.Command{
		Use:   "scores <category>",
		Short: "List effectiveness records for a category",
		Args:  cobra.ExactArgs(1),
		Run:   runScores,
	}

	cmd.Flags().Bool("catalog", false, "List usage counters instead of scores")

	RootCmd.AddCommand(cmd)
}

func runScores(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	category := normalize.Key(args[0])
	showCatalog, _ := cmd.Flags().GetBool("catalog")

	if showCatalog {
		entries, err := s.CatalogEntries(cmd.Context(), category)
		if err != nil {
			exitErr("catalog", err)
		}
		if formatFlag == "text" {
			for _, e := range entries {
				fmt.Printf("%-40s used=%d decisions=%d\n", e.Name, e.UsageCount, e.DecisionCount)
			}
			return
		}
		b, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(b))
		return
	}

	scores, err := s.Scores(cmd.Context(), category)
	if err != nil {
		exitErr("scores", err)
	}
	if formatFlag == "text" {
		for _, r := range scores {
			fmt.Printf("%-40s rate=%.2f covered=%d led=%d avg_pos=%.2f\n",
				r.Name, r.DecisionRate, r.TimesCovered, r.TimesLedToDecision, r.AvgPosition)
		}
		return
	}
	b, _ := json.MarshalIndent(scores, "", "  ")
	fmt.Println(string(b))
}
