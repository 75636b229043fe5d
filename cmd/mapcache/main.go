package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hexframe/mapcache/cache"
	"github.com/hexframe/mapcache/client"
	"github.com/hexframe/mapcache/internal/config"
	"github.com/hexframe/mapcache/mcp/handlers"
	"github.com/hexframe/mapcache/storage"
	"github.com/hexframe/mapcache/syncer"
)

var serviceURL string
var debug bool

func main() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mapcache",
		Short: "Hexframe map cache CLI",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.InitLogger()
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
				os.Setenv("HEXFRAME_DEBUG", "true")
				log.Debug().Msg("debug logging enabled")
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}

	defaultURL := getEnv("MAPCACHE_SERVICE_URL", "http://localhost:8080")
	rootCmd.PersistentFlags().StringVar(&serviceURL, "service-url", defaultURL, "Base URL of the hexframe map service")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable verbose debug output")

	rootCmd.AddCommand(newFetchRegionCmd())
	rootCmd.AddCommand(newMoveCmd())
	rootCmd.AddCommand(newSwapCmd())
	rootCmd.AddCommand(newCreateItemCmd())
	rootCmd.AddCommand(newDeleteItemCmd())
	rootCmd.AddCommand(newSyncOnceCmd())
	rootCmd.AddCommand(newServeMCPCmd())

	return rootCmd
}

// newSession assembles a store plus orchestrators around one HTTP client.
func newSession() (*cache.Store, *client.Client) {
	c := client.New(serviceURL, client.WithReadRetry(10*time.Second))
	store := cache.NewStore(cache.DefaultConfig())
	return store, c
}

func newFetchRegionCmd() *cobra.Command {
	var maxDepth int

	cmd := &cobra.Command{
		Use:   "fetch-region <center-coord-id>",
		Short: "Fetch a region and print its tiles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, c := newSession()
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			items, err := c.FetchRegion(ctx, args[0], maxDepth)
			if err != nil {
				return err
			}
			store.Dispatch(cache.LoadRegion{Items: items, CenterCoordID: args[0], MaxDepth: maxDepth})

			tiles := cache.RegionItems(store.State(), args[0], maxDepth)
			out, _ := json.MarshalIndent(tiles, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().IntVar(&maxDepth, "max-depth", 3, "Generations below the center to fetch")
	return cmd
}

func newMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <source-coord-id> <destination-coord-id>",
		Short: "Move a map item (server-side, no local cache)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c := newSession()
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			// No cache to keep consistent here, so the orchestrator runs in
			// its degraded server-only mode.
			mover := cache.NewMoveOrchestrator(nil, c)
			tile := cache.Tile{Metadata: cache.TileMetadata{CoordID: args[0]}}
			if err := mover.Move(ctx, cache.MoveRequest{Tile: tile, DestinationID: args[1]}); err != nil {
				return err
			}
			fmt.Printf("moved %s to %s\n", args[0], args[1])
			return nil
		},
	}
}

func newSwapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "swap <coord-id-a> <coord-id-b>",
		Short: "Swap two map items (server-side, no local cache)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c := newSession()
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			if _, err := c.SwapMapItems(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("swapped %s and %s\n", args[0], args[1])
			return nil
		},
	}
}

func newCreateItemCmd() *cobra.Command {
	var name, description, url string

	cmd := &cobra.Command{
		Use:   "create-item <coord-id>",
		Short: "Create a map item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			_, c := newSession()
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			item, err := c.CreateItem(ctx, args[0], cache.CreatePayload{Name: name, Description: description, URL: url})
			if err != nil {
				return err
			}
			out, _ := json.MarshalIndent(item, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Item name")
	cmd.Flags().StringVar(&description, "description", "", "Item description")
	cmd.Flags().StringVar(&url, "url", "", "Item URL")
	return cmd
}

func newDeleteItemCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-item <coord-id>",
		Short: "Delete a map item and its subtree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c := newSession()
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			if err := c.DeleteItem(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}
}

func newSyncOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-once <center-coord-id>",
		Short: "Load a region and run one sync cycle against it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, c := newSession()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			nav := cache.NewNavigationService(store, c)
			if err := nav.NavigateTo(ctx, args[0]); err != nil {
				return err
			}

			syncCfg, err := syncer.LoadConfig()
			if err != nil {
				return err
			}
			engine := syncer.New(syncCfg, store, c)
			if err := engine.ForceSync(ctx); err != nil {
				return err
			}
			fmt.Printf("synced; %d tiles cached\n", len(store.State().ItemsByID))
			return nil
		},
	}
}

func newServeMCPCmd() *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve the map cache as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			settings.Init()

			c := client.New(serviceURL, client.WithReadRetry(10*time.Second))
			store := cache.NewStore(cache.DefaultConfig())

			// Best-effort warm start from the previous session's snapshot.
			files := storage.NewFileStore(dataDir)
			var saved cache.State
			if files.Load("session", &saved) {
				store.UpdateCache(func(*cache.State) *cache.State { return &saved })
				log.Info().Int("tiles", len(saved.ItemsByID)).Msg("restored cache snapshot")
			}
			defer func() { files.Save("session", store.State()) }()

			nav := cache.NewNavigationService(store, c)
			mover := cache.NewMoveOrchestrator(store, c)
			mutations := cache.NewMutationService(store, c, cache.NewPendingChanges())

			syncCfg, err := syncer.LoadConfig()
			if err != nil {
				return err
			}
			engine := syncer.New(syncCfg, store, c)
			engine.Start()
			defer engine.Stop()

			s := server.NewMCPServer("hexframe-mapcache", "1.0.0", server.WithToolCapabilities(true))
			if err := handlers.NewMapHandler(store, nav).RegisterTools(s); err != nil {
				return err
			}
			if err := handlers.NewMutationHandler(store, mover, mutations).RegisterTools(s); err != nil {
				return err
			}
			return server.ServeStdio(s)
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "./data/mapcache", "Directory for cache snapshots")
	return cmd
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
