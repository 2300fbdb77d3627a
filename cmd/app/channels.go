package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"meu-plano/internal/domain/model"
)

var withSummary bool

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Reconcile the channel slots once and print them as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		ctx = a.withCustomer(ctx)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if withSummary {
			sum, err := a.billing.Summary(ctx, a.customer, "")
			if err != nil {
				return err
			}
			return enc.Encode(sum)
		}
		views, err := a.channels.Load(ctx, a.customer)
		if err != nil {
			return err
		}
		return enc.Encode(struct {
			Items []model.ChannelView `json:"items"`
		}{views})
	},
}

func init() {
	channelsCmd.Flags().BoolVar(&withSummary, "summary", false, "print the billing summary with billable flags instead")
}
