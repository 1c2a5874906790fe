package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/checkpoint-tracker/internal/normalize"
	"github.com/rcliao/checkpoint-tracker/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Export recorded interview patterns as JSON",
		Long:  "Export completed-session coverage sequences, newest first, to stdout or a file.",
		Run:   runPatterns,
	}

	cmd.Flags().String("category", "", "Only patterns for this category")
	cmd.Flags().Int("limit", 0, "Max patterns (0 = all)")
	cmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")

	RootCmd.AddCommand(cmd)
}

func runPatterns(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	category, _ := cmd.Flags().GetString("category")
	limit, _ := cmd.Flags().GetInt("limit")
	output, _ := cmd.Flags().GetString("output")

	recs, err := s.Patterns(cmd.Context(), store.PatternParams{
		Category: normalize.Key(category),
		Limit:    limit,
	})
	if err != nil {
		exitErr("patterns", err)
	}

	b, _ := json.MarshalIndent(recs, "", "  ")
	if output == "" {
		fmt.Println(string(b))
		return
	}
	if err := os.WriteFile(output, b, 0644); err != nil {
		exitErr("write output", err)
	}
	fmt.Fprintf(os.Stderr, "exported %d patterns to %s\n", len(recs), output)
}
