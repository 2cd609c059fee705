package cmd

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var expireInvitationsCmd = &cobra.Command{
	Use:   "expire-invitations",
	Short: "Clear invitation tokens that are older than the configured invitation lifetime",
	Run: func(cmd *cobra.Command, args []string) {

		// Load the config, initialize the database and set up logging
		commonSetUp()
		defer portalDB.Close()

		cutoff := time.Now().UTC().Add(-appCfg.Accounts.InvitationTTL)
		log.Info().Time("cutoff", cutoff).Msg("Expiring invitations...")

		count, err := portalDB.ExpireInvitations(context.Background(), cutoff)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to expire invitations")
		}

		log.Info().Int64("expired", count).Msg("Invitation expiry completed")
	},
}

func init() {
	rootCmd.AddCommand(expireInvitationsCmd)
}
