package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/checkpoint-tracker/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	var out any
	if sq, ok := s.(*store.SQLiteStore); ok {
		st, err := sq.Stats(cmd.Context(), cfg.Store.Path)
		if err != nil {
			exitErr("stats", err)
		}
		out = st
	} else {
		cats, err := s.Categories(cmd.Context())
		if err != nil {
			exitErr("stats", err)
		}
		out = map[string]any{"db_path": cfg.Store.Path, "backend": cfg.Store.Backend, "categories": cats}
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
