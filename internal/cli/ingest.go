package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/checkpoint-tracker/internal/ingest"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Ingest a completed session summary",
		Long:  "Read a session summary as JSON from a file or stdin, screen it, and fold it into the shared scores.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runIngest,
	}

	RootCmd.AddCommand(cmd)
}

func runIngest(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	var r io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			exitErr("open input", err)
		}
		defer f.Close()
		r = f
	}

	var req ingest.Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		exitErr("parse summary", err)
	}

	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	svc := ingest.NewService(s, cfg.RetryPolicy(), cfg.NewLogger(os.Stderr))
	res, err := svc.Ingest(cmd.Context(), &req)
	if err != nil {
		var verr *ingest.ValidationError
		var rej *ingest.RejectionError
		switch {
		case errors.As(err, &verr):
			printResult(ingest.Result{OK: false, Errors: verr.Problems})
			os.Exit(1)
		case errors.As(err, &rej):
			printResult(ingest.Result{OK: false, Errors: []string{rej.Error()}})
			os.Exit(1)
		default:
			exitErr("ingest", err)
		}
	}

	printResult(*res)
	if !res.OK {
		os.Exit(1)
	}
}

func printResult(res ingest.Result) {
	if res.Errors == nil {
		res.Errors = []string{}
	}
	b, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(b))
}
