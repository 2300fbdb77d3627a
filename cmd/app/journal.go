package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var journalLimit int

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "List recent half-finished channel mutations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.journal == nil {
			return errors.New("journal needs database.url")
		}

		entries, err := a.journal.ListRecent(ctx, a.customer.CustomerID, journalLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no entries")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %s  slot=%d  done=[%s]  failed=%s  err=%s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"), e.Operation, e.SlotID,
				strings.Join(e.Completed, ","), e.FailedStep, e.Error)
		}
		return nil
	},
}

func init() {
	journalCmd.Flags().IntVar(&journalLimit, "limit", 20, "max entries")
}
