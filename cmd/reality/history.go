package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/nim-reality/reality"
)

func historyCmd(flags *globalFlags) *cobra.Command {
	var (
		userID string
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List a user's stored realities, oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			a, err := buildApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.engine.Memory().History(cmd.Context(), userID, limit)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), records, asJSON)
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum records (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func printHistory(out io.Writer, records []reality.Record, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No realities stored.")
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(out, "%s  %-9s %-20s %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.Attributes.EmotionalState,
			strings.Join(r.Attributes.Beliefs, ","),
			reality.TextSample(r.Text))
	}
	return nil
}
