package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/CMSgov/dpc-portal/internal/events"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Run the Pulsar consumer that records credential events in the audit trail",
	Run: func(cmd *cobra.Command, args []string) {

		// Load the config, initialize the database and set up logging
		commonSetUp()
		defer portalDB.Close()

		if appCfg.Pulsar.URL == "" {
			log.Fatal().Msg("pulsar.url is required to consume credential events")
		}

		consumer, err := events.NewEventConsumer(appCfg.Pulsar.URL, appCfg.Pulsar.TopicConsumer, appCfg.Pulsar.Subscription)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize event consumer")
		}
		defer consumer.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = log.With().Str("component", "consumer").Logger().WithContext(ctx)

		log.Info().Str("topic", appCfg.Pulsar.TopicConsumer).Msg("Waiting for credential events...")
		if err := consumer.Run(ctx, portalDB.RecordCredentialEvent); err != nil {
			log.Error().Err(err).Msg("Consumer stopped")
		}
	},
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}
