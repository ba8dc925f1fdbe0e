package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/voicetutor/internal/audiocache"
	"github.com/satriahrh/voicetutor/internal/config"
)

type options struct {
	backend   string
	dir       string
	boltPath  string
	extension string
	verbose   bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "ttscache",
		Short:         "Inspect and clear the synthesized speech cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.applyDefaults(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.backend, "backend", "", "cache backend: file or bolt (default from TTS_CACHE_BACKEND)")
	flags.StringVar(&opts.dir, "dir", "", "cache directory for the file backend (default from TTS_CACHE_DIR)")
	flags.StringVar(&opts.boltPath, "bolt-path", "", "database path for the bolt backend (default from TTS_CACHE_BOLT_PATH)")
	flags.StringVar(&opts.extension, "ext", audiocache.DefaultExtension, "artifact extension for the file backend")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log store operations")

	rootCmd.AddCommand(newStatsCmd(opts), newClearCmd(opts), newListCmd(opts))
	return rootCmd
}

// applyDefaults fills unset flags from the environment
func (o *options) applyDefaults(cmd *cobra.Command) error {
	cache, err := config.LoadCache()
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("backend") {
		o.backend = cache.Backend
	}
	if !cmd.Flags().Changed("dir") {
		o.dir = cache.Dir
	}
	if !cmd.Flags().Changed("bolt-path") {
		o.boltPath = cache.BoltPath
	}
	return nil
}

func (o *options) open() (audiocache.Store, func() error, error) {
	logger := zap.NewNop()
	if o.verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return nil, nil, err
		}
	}
	return audiocache.OpenStore(audiocache.StoreConfig{
		Backend:   o.backend,
		Dir:       o.dir,
		BoltPath:  o.boltPath,
		Extension: o.extension,
	}, logger)
}

func (o *options) location() string {
	if o.backend == "bolt" {
		return o.boltPath
	}
	return o.dir
}

func newStatsCmd(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the number of cached artifacts and their total size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStore, err := opts.open()
			if err != nil {
				return err
			}
			defer closeStore()

			stats, err := audiocache.Summarize(cmd.Context(), store)
			if err != nil {
				return err
			}
			return printStats(cmd.OutOrStdout(), opts.location(), stats, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func printStats(w io.Writer, location string, stats audiocache.Stats, asJSON bool) error {
	if asJSON {
		_, err := fmt.Fprintf(w, "{\"file_count\":%d,\"total_size_mb\":%.2f}\n", stats.FileCount, stats.TotalSizeMB)
		return err
	}
	_, err := fmt.Fprintf(w, "Cache:       %s\nFiles:       %s\nTotal size:  %.2f MB (%s)\n",
		location,
		humanize.Comma(int64(stats.FileCount)),
		stats.TotalSizeMB,
		humanize.IBytes(stats.TotalSizeBytes))
	return err
}

func newClearCmd(opts *options) *cobra.Command {
	var maxFiles uint64

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached artifacts",
		Long: "Remove every cached artifact. With --max-files, remove them only when\n" +
			"the cache holds more than that many artifacts.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStore, err := opts.open()
			if err != nil {
				return err
			}
			defer closeStore()

			var removed uint64
			if cmd.Flags().Changed("max-files") {
				removed, err = store.ClearIfOver(cmd.Context(), maxFiles)
			} else {
				removed, err = store.ClearAll(cmd.Context())
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %s artifacts\n", humanize.Comma(int64(removed)))
			return err
		},
	}
	cmd.Flags().Uint64Var(&maxFiles, "max-files", 0, "only clear when more than this many artifacts are cached")
	return cmd
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached artifacts, largest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStore, err := opts.open()
			if err != nil {
				return err
			}
			defer closeStore()

			entries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			sort.Slice(entries, func(i, j int) bool {
				if entries[i].SizeBytes != entries[j].SizeBytes {
					return entries[i].SizeBytes > entries[j].SizeBytes
				}
				return entries[i].Key < entries[j].Key
			})

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSIZE\tLOCATOR")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Key, humanize.IBytes(e.SizeBytes), e.Locator)
			}
			return tw.Flush()
		},
	}
}
