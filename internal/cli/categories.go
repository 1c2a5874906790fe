package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List categories with checkpoint and session counts",
		Run:   runCategories,
	}

	RootCmd.AddCommand(cmd)
}

func runCategories(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	cats, err := s.Categories(cmd.Context())
	if err != nil {
		exitErr("categories", err)
	}

	if formatFlag == "text" {
		for _, c := range cats {
			fmt.Printf("%-30s checkpoints=%d scored=%d sessions=%d\n", c.Category, c.Checkpoints, c.Scored, c.Sessions)
		}
		return
	}

	b, _ := json.MarshalIndent(cats, "", "  ")
	fmt.Println(string(b))
}
