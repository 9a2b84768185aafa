package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/playful-game/roomsync/internal/client"
	"github.com/playful-game/roomsync/internal/config"
)

func main() {
	// Local overrides for development; absence is not an error.
	_ = godotenv.Load()

	cfg := config.Default()
	if err := newCmd(&cfg).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newCmd(cfg *config.Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("ROOMSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var (
		startPerm = string(cfg.StartPermission)
		skipPerm  = string(cfg.SkipPermission)
		topicPerm = string(cfg.TopicPermission)
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:           "roomsync",
		Short:         "Interactive client for emoji guessing rooms.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.StartPermission = config.Permission(startPerm)
			cfg.SkipPermission = config.Permission(skipPerm)
			cfg.TopicPermission = config.Permission(topicPerm)
			if err := cfg.Validate(); err != nil {
				return err
			}

			lg, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer lg.Sync()

			c, err := client.New(*cfg, lg, client.WithStatusFunc(printStatus))
			if err != nil {
				return err
			}
			defer c.Close()

			return runREPL(cmd.Context(), c, cfg)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.APIBaseURL, "api-url", cfg.APIBaseURL, "room API base URL (env: ROOMSYNC_API_URL)")
	fs.StringVar(&cfg.WSBaseURL, "ws-url", cfg.WSBaseURL, "websocket base URL (env: ROOMSYNC_WS_URL)")
	fs.IntVar(&cfg.MinPlayers, "min-players", cfg.MinPlayers, "participants required to start (env: ROOMSYNC_MIN_PLAYERS)")
	fs.IntVar(&cfg.MaxPlayers, "max-players", cfg.MaxPlayers, "participant cap per room (env: ROOMSYNC_MAX_PLAYERS)")
	fs.IntVar(&cfg.MinEmojis, "min-emojis", cfg.MinEmojis, "minimum emojis per topic (env: ROOMSYNC_MIN_EMOJIS)")
	fs.IntVar(&cfg.MaxEmojis, "max-emojis", cfg.MaxEmojis, "maximum emojis per topic (env: ROOMSYNC_MAX_EMOJIS)")
	fs.StringVar(&startPerm, "start-permission", startPerm, "who may start the game: host, leader, host-or-leader, anyone (env: ROOMSYNC_START_PERMISSION)")
	fs.StringVar(&skipPerm, "skip-permission", skipPerm, "who may skip the discussion (env: ROOMSYNC_SKIP_PERMISSION)")
	fs.StringVar(&topicPerm, "topic-permission", topicPerm, "who may set the round topic (env: ROOMSYNC_TOPIC_PERMISSION)")
	fs.DurationVar(&cfg.HeartbeatInterval, "heartbeat", cfg.HeartbeatInterval, "ping interval on the socket (env: ROOMSYNC_HEARTBEAT)")
	fs.DurationVar(&cfg.ReconnectDelay, "reconnect-delay", cfg.ReconnectDelay, "delay between reconnection attempts (env: ROOMSYNC_RECONNECT_DELAY)")
	fs.IntVar(&cfg.MaxReconnectAttempts, "reconnect-attempts", cfg.MaxReconnectAttempts, "reconnection attempts before giving up (env: ROOMSYNC_RECONNECT_ATTEMPTS)")
	fs.StringVar(&cfg.PersistDir, "persist-dir", cfg.PersistDir, "directory for session snapshots (env: ROOMSYNC_PERSIST_DIR)")
	fs.DurationVar(&cfg.PersistDebounce, "persist-debounce", cfg.PersistDebounce, "debounce window for snapshot writes (env: ROOMSYNC_PERSIST_DEBOUNCE)")
	fs.BoolVarP(&verbose, "verbose", "v", false, "development logging (env: ROOMSYNC_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	c := zap.NewProductionConfig()
	c.OutputPaths = []string{"stderr"}
	return c.Build()
}
