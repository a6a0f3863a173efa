package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"door-opener-bridge/internal/database"
	"door-opener-bridge/internal/door"
	"door-opener-bridge/internal/logging"
	"door-opener-bridge/internal/types"
)

var doorsCmd = &cobra.Command{
	Use:   "doors",
	Short: "Manage tracked doors",
	Long: `List, track and untrack the doors whose toggles the bridge watches.
Changes are written to the configured door store and picked up on the next start.`,
}

var doorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked doors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDirectory(cmd, func(ctx context.Context, doors *door.Directory) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tWORLD\tPOSITION\tENABLED\tINVERT\tSTAY OPEN")
			for _, d := range doors.All() {
				r := d.Record()
				fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%t\t%ds\n", r.ID, r.World, r.Position, r.Enabled, r.InvertOpen, r.StayOpen)
			}
			return w.Flush()
		})
	},
}

var (
	trackWorld    string
	trackX        int
	trackY        int
	trackZ        int
	trackInvert   bool
	trackStayOpen int
	trackDisabled bool
)

var doorsTrackCmd = &cobra.Command{
	Use:   "track <id>",
	Short: "Track a door or replace its settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseDoorID(args[0])
		if err != nil {
			return err
		}
		if trackStayOpen < 0 {
			return fmt.Errorf("--stay-open must not be negative")
		}

		return withDirectory(cmd, func(ctx context.Context, doors *door.Directory) error {
			d := door.FromRecord(door.Record{
				ID:         id,
				World:      trackWorld,
				Position:   types.BlockPos{X: trackX, Y: trackY, Z: trackZ},
				Enabled:    !trackDisabled,
				InvertOpen: trackInvert,
				StayOpen:   trackStayOpen,
			})
			if err := doors.Track(ctx, d); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Door %d tracked\n", id)
			return nil
		})
	},
}

var doorsUntrackCmd = &cobra.Command{
	Use:   "untrack <id>",
	Short: "Stop tracking a door",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseDoorID(args[0])
		if err != nil {
			return err
		}

		return withDirectory(cmd, func(ctx context.Context, doors *door.Directory) error {
			if err := doors.Untrack(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Door %d untracked\n", id)
			return nil
		})
	},
}

var doorsInvertCmd = &cobra.Command{
	Use:   "invert <id>",
	Short: "Flip which toggle direction counts as opened",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseDoorID(args[0])
		if err != nil {
			return err
		}

		return withDirectory(cmd, func(ctx context.Context, doors *door.Directory) error {
			d, err := doors.Get(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Door %d invertOpen=%t\n", id, d.ToggleInvertOpen())
			return nil
		})
	},
}

func init() {
	doorsTrackCmd.Flags().StringVar(&trackWorld, "world", "world", "world the door is in")
	doorsTrackCmd.Flags().IntVar(&trackX, "x", 0, "block x coordinate")
	doorsTrackCmd.Flags().IntVar(&trackY, "y", 0, "block y coordinate")
	doorsTrackCmd.Flags().IntVar(&trackZ, "z", 0, "block z coordinate")
	doorsTrackCmd.Flags().BoolVar(&trackInvert, "invert", false, "treat the CLOSE direction as opened")
	doorsTrackCmd.Flags().IntVar(&trackStayOpen, "stay-open", 0, "seconds the door stays open after opening")
	doorsTrackCmd.Flags().BoolVar(&trackDisabled, "disabled", false, "track the door without enabling it")

	doorsCmd.AddCommand(doorsListCmd, doorsTrackCmd, doorsUntrackCmd, doorsInvertCmd)
	rootCmd.AddCommand(doorsCmd)
}

// withDirectory opens the configured store, loads every door and runs fn
func withDirectory(cmd *cobra.Command, fn func(context.Context, *door.Directory) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.Initialize(cfg.LogLevel)

	store, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open door store: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	doors := door.NewDirectory(store, door.WithLogger(logger))
	if err := doors.Load(ctx); err != nil {
		return err
	}

	return fn(ctx, doors)
}

func parseDoorID(s string) (types.DoorID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid door id %q: %w", s, err)
	}
	return types.DoorID(id), nil
}
