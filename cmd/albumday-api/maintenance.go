package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/albumday/internal/auth"
	"github.com/MarcoPoloResearchLab/albumday/internal/config"
	"github.com/MarcoPoloResearchLab/albumday/internal/journey"
	"github.com/MarcoPoloResearchLab/albumday/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// withClock opens storage and hands a ready clock to run. Used by the maintenance commands.
func withClock(ctx context.Context, run func(context.Context, *journey.GlobalClock) error) error {
	appConfig, err := config.LoadStorage(viper.GetViper())
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogEncoding)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, closeDB, err := openDatabase(appConfig, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	clock, err := journey.NewGlobalClock(journey.ClockConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger.With(zap.String("component", "cli")),
	})
	if err != nil {
		return err
	}
	return run(ctx, clock)
}

func printJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the global state and release the first album",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClock(cmd.Context(), func(ctx context.Context, clock *journey.GlobalClock) error {
				state, created, err := clock.Initialize(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"created": created, "globalState": state})
			})
		},
	}
}

func newAdvanceDayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "advance-day",
		Short: "Advance the global clock by one day (scheduler entry point)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClock(cmd.Context(), func(ctx context.Context, clock *journey.GlobalClock) error {
				result, err := clock.Tick(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

func newTogglePauseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle-pause",
		Short: "Pause or resume the global clock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClock(cmd.Context(), func(ctx context.Context, clock *journey.GlobalClock) error {
				state, err := clock.TogglePause(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), state)
			})
		},
	}
}

func newResetJourneyCommand() *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "reset-journey",
		Short: "Delete all ratings and notes and restart the journey at day 1",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("refusing to reset without --confirm")
			}
			return withClock(cmd.Context(), func(ctx context.Context, clock *journey.GlobalClock) error {
				state, err := clock.Reset(ctx, journey.ResetConfirmation)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), state)
			})
		},
	}
	cmd.Flags().BoolVar(&confirmed, "confirm", false, "Confirm the destructive reset")
	return cmd
}

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for admin.password_hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := ""
			if len(args) == 1 {
				password = args[0]
			} else {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				password = strings.TrimRight(string(raw), "\r\n")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}
