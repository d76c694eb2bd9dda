package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/w3a11y-artisan/internal/config"
	"github.com/suPer8Hu/w3a11y-artisan/internal/httpapi/middleware"
)

// newTokenCmd mints bearer tokens for the WordPress bridge and local testing.
func newTokenCmd() *cobra.Command {
	var (
		uid  uint64
		caps []string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for a WordPress user",
		Example: `  w3a11y token --uid 1 --caps upload_files,manage_options --ttl 24h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if uid == 0 {
				return fmt.Errorf("--uid is required")
			}
			for i := range caps {
				caps[i] = strings.TrimSpace(caps[i])
			}
			tok, err := middleware.IssueToken(cfg.JWTSecret, uid, caps, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}

	cmd.Flags().Uint64Var(&uid, "uid", 0, "WordPress user id")
	cmd.Flags().StringSliceVar(&caps, "caps", []string{middleware.CapUploadFiles}, "Capabilities to embed")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
