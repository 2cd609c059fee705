package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/CMSgov/dpc-portal/db"
	"github.com/CMSgov/dpc-portal/internal/appconfig"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	configPath string
	host       string
	port       int

	appCfg   *appconfig.Config
	portalDB *db.PortalDB
)

var rootCmd = &cobra.Command{
	Use:   "dpc-portal",
	Short: "DPC Portal",
	Long:  `DPC Portal is the self-service web portal where provider organizations manage their DPC API credentials.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn",
		"sets the log level")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/config.yaml",
		"path to the portal config file")
}

// commonSetUp sets up logging, loads the config file and opens the database.
func commonSetUp() {
	setLogging(logLevel)

	var err error
	appCfg, err = appconfig.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := log.With().Str("component", "db").Logger()
	portalDB, err = db.NewPortalDB(appCfg.Database.Driver, appCfg.Database.Source, &logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PortalDB")
	}
}

func setLogging(level string) {
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}
