package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"meu-plano/internal/config"
	"meu-plano/internal/infra/api"
)

var (
	tokenTTL  time.Duration
	tokenRole string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the configured customer",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgPath, devMode)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if cfg.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is not set")
		}
		tok, err := api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Customer.ID).Mint(tokenRole, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "owner", "role claim")
}
