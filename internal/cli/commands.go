package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/lazypower/psyche/internal/config"
	"github.com/lazypower/psyche/internal/engine"
	"github.com/lazypower/psyche/internal/hooks"
	"github.com/lazypower/psyche/internal/store"
	"github.com/spf13/cobra"
)

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openDB opens the database named by the config, or the default path.
func openDB(cfg config.Config) (*store.DB, string, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, "", fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	return db, dbPath, err
}

// withEngine opens the database and builds an engine for one-shot commands.
func withEngine(fn func(ctx context.Context, db *store.DB, eng *engine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, _, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return fn(ctx, db, engine.New(db, cfg.Engine))
}

func formatPAD(p store.PAD) string {
	return fmt.Sprintf("p=%+.2f a=%+.2f d=%+.2f", p.P, p.A, p.D)
}

// --- hook command ---

var hookCmd = &cobra.Command{
	Use:       "hook [inventory|event|frame]",
	Short:     "Forward a collaborator hook (JSON on stdin) to the server",
	Long:      "Reads JSON from stdin and forwards it to the running server. Never exits non-zero.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: hooks.Events,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			hooks.ExitError(err)
			return
		}
		if err := hooks.Handle(hooks.NewClient(cfg.Hooks), args[0], os.Stdin, os.Stdout); err != nil {
			hooks.ExitError(err)
		}
	},
}

// --- mood command ---

var moodLimit int

var moodCmd = &cobra.Command{
	Use:   "mood [character]",
	Short: "Show a character's current mood, object bias and recent frames",
	Args:  cobra.ExactArgs(1),
	RunE:  runMood,
}

func runMood(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	id := args[0]
	return withEngine(func(ctx context.Context, db *store.DB, eng *engine.Engine) error {
		m, err := eng.CurrentMood(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "## %s\n\n", id)
		if m == nil {
			fmt.Fprintln(out, "No current mood recorded.")
		} else {
			fmt.Fprintf(out, "Current:   %s  (%s, updated %s)\n", formatPAD(m.PAD),
				english.Plural(m.SampleCount, "sample", "samples"),
				humanize.Time(time.UnixMilli(m.UpdatedAt)))
		}

		oi, err := eng.Influence(ctx, id)
		if err != nil {
			return err
		}
		if oi != nil {
			fmt.Fprintf(out, "Objects:   %s  (weight %.3f)\n", formatPAD(oi.PAD), oi.TotalWeight)
		}

		frames, err := eng.History(ctx, id, moodLimit)
		if err != nil {
			return err
		}
		if len(frames) == 0 {
			return nil
		}
		fmt.Fprintf(out, "\n### Recent frames\n")
		for _, f := range frames {
			fmt.Fprintf(out, "  %s  %s\n", formatPAD(f.PAD), humanize.Time(time.UnixMilli(f.CreatedAt)))
		}
		return nil
	})
}

// --- propagate command ---

var propagateCmd = &cobra.Command{
	Use:   "propagate [source] [event-type] [intensity]",
	Short: "Propagate an emotional event from a character to its neighbors",
	Args:  cobra.ExactArgs(3),
	RunE:  runPropagate,
}

func runPropagate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	intensity, err := strconv.ParseFloat(args[2], 64)
	if err != nil || intensity < 0 {
		return fmt.Errorf("intensity must be a non-negative number, got %q", args[2])
	}

	return withEngine(func(ctx context.Context, db *store.DB, eng *engine.Engine) error {
		res, err := eng.PropagateEmotion(ctx, args[0], args[1], intensity)
		if res == nil {
			return err
		}
		fmt.Fprintf(out, "%s felt %s (%.2f): %s\n", res.Source, res.EventType, intensity,
			english.Plural(len(res.Responses), "neighbor responded", "neighbors responded"))
		for _, r := range res.Responses {
			fmt.Fprintf(out, "  %-16s %s  (contagion %.3f)\n", r.CharacterID, formatPAD(r.Frame.PAD), r.Intensity)
		}
		for _, id := range res.BelowThreshold {
			fmt.Fprintf(out, "  %-16s below threshold\n", id)
		}
		for _, id := range res.NoHistory {
			fmt.Fprintf(out, "  %-16s no frames yet, skipped\n", id)
		}
		return err
	})
}

// --- influence command ---

var influenceCmd = &cobra.Command{
	Use:   "influence [character]",
	Short: "Recompute and show the object influence of a character's inventory",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfluence,
}

func runInfluence(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	id := args[0]
	return withEngine(func(ctx context.Context, db *store.DB, eng *engine.Engine) error {
		oi, err := eng.ComputeObjectInfluence(ctx, id)
		if err != nil {
			return err
		}
		if oi == nil {
			fmt.Fprintf(out, "%s owns nothing; no object influence.\n", id)
			return nil
		}

		fmt.Fprintf(out, "## %s\n\n", id)
		fmt.Fprintf(out, "Bias:   %s\n", formatPAD(oi.PAD))
		fmt.Fprintf(out, "Weight: %.3f\n", oi.TotalWeight)

		domains := make([]string, 0, len(oi.DomainWeights))
		for d := range oi.DomainWeights {
			domains = append(domains, d)
		}
		sort.Strings(domains)
		for _, d := range domains {
			fmt.Fprintf(out, "  %-16s %.3f\n", d, oi.DomainWeights[d])
		}

		items, err := db.GetInventory(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n### Inventory\n")
		now := time.Now()
		for _, it := range items {
			fmt.Fprintf(out, "  %-16s %-10s weight %.3f  acquired %s, %s\n",
				it.ObjectID, it.AcquisitionMethod, engine.ItemWeight(it, now),
				humanize.Time(time.UnixMilli(it.AcquiredAt)),
				english.Plural(it.InteractionCount, "interaction", "interactions"))
		}
		return nil
	})
}

// --- interval command ---

var intervalCmd = &cobra.Command{
	Use:   "interval [duration]",
	Short: "Show or persist the scheduler interval (e.g. 15m)",
	Long:  "With no argument, prints the persisted interval. A running server picks up a new value on restart; use PUT /api/scheduler/interval to apply it live.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInterval,
}

func runInterval(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, _, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sched := engine.NewScheduler(db, func(context.Context) error { return nil }, cfg.Engine)
	if len(args) == 1 {
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return fmt.Errorf("parse interval: %w", err)
		}
		if err := sched.SetUpdateInterval(ctx, d); err != nil {
			return err
		}
		fmt.Fprintf(out, "scheduler interval set to %s\n", d)
		return nil
	}

	raw, ok, err := db.GetSetting(ctx, engine.UpdateIntervalKey)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(out, "%s (default)\n", cfg.Engine.TickInterval)
		return nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		fmt.Fprintf(out, "%s (persisted)\n", raw)
		return nil
	}
	fmt.Fprintf(out, "%s (persisted)\n", time.Duration(ms)*time.Millisecond)
	return nil
}

func init() {
	moodCmd.Flags().IntVarP(&moodLimit, "limit", "n", 10, "Number of recent frames to show")
}
