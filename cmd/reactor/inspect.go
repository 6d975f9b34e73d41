package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/reactor/internal/persistence"
)

func buildInspectCmd() *cobra.Command {
	var store string
	var key string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the persisted head state for a key",
		Long: `Open --store (the same location scheme options.persistence.location
accepts: empty for in-memory, "sqlite://<path>", "postgres://<dsn>") and
print the head state committed under --key, without starting a scheduler.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), store, key)
		},
	}
	cmd.Flags().StringVar(&store, "store", "", "Persistence location (sqlite://<path> or postgres://<dsn>)")
	cmd.Flags().StringVar(&key, "key", "", "Agent key (UUID) to inspect")
	cobra.CheckErr(cmd.MarkFlagRequired("store"))
	cobra.CheckErr(cmd.MarkFlagRequired("key"))
	return cmd
}

func runInspect(ctx context.Context, location, key string) error {
	store, _, err := persistence.OpenFromLocation(location, false, false)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	state, handle, ok, err := store.Head(ctx, key)
	if err != nil {
		return fmt.Errorf("read head for %s: %w", key, err)
	}
	if !ok {
		return fmt.Errorf("no persisted state for key %s", key)
	}

	raw, err := state.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	var pretty map[string]any
	if err := json.Unmarshal(raw, &pretty); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return fmt.Errorf("format state: %w", err)
	}

	fmt.Printf("version: %s\n%s\n", handle, out)
	return nil
}
