package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/checkpoint-tracker/internal/catalog"
	"github.com/rcliao/checkpoint-tracker/internal/normalize"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rank <category>",
		Short: "Show ranked checkpoints, recommended path, and high-value checkpoints",
		Long:  "Load the catalog and scores for a category and print the ranking a new session would start with.",
		Args:  cobra.ExactArgs(1),
		Run:   runRank,
	}

	cmd.Flags().Int("limit", 0, "Max ranked checkpoints to print (0 = all)")

	RootCmd.AddCommand(cmd)
}

func runRank(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	loader := catalog.NewLoader(s, cfg.Normalization(), cfg.NewLogger(os.Stderr))
	snap, err := loader.Load(cmd.Context(), normalize.Key(args[0]))
	if err != nil {
		exitErr("rank", err)
	}

	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(snap.Checkpoints) > limit {
		snap.Checkpoints = snap.Checkpoints[:limit]
	}

	if formatFlag == "text" {
		fmt.Printf("category: %s\n", snap.Category)
		for i, c := range snap.Checkpoints {
			fmt.Printf("%3d. %-40s score=%.2f rate=%.2f\n", i+1, c.Name, c.CompositeScore, c.DecisionRate)
		}
		fmt.Printf("recommended path: %s\n", strings.Join(snap.RecommendedPath, " -> "))
		fmt.Printf("high value: %s\n", strings.Join(snap.HighValue, ", "))
		return
	}

	b, _ := json.MarshalIndent(snap, "", "  ")
	fmt.Println(string(b))
}
