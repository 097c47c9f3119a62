package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/streambinder/youterm/config"
	"github.com/streambinder/youterm/discovery"
	"github.com/streambinder/youterm/history"
	"github.com/streambinder/youterm/provider"
	"github.com/streambinder/youterm/quality"
	"github.com/streambinder/youterm/queue"
	"github.com/streambinder/youterm/util"
	"github.com/streambinder/youterm/util/anchor"
)

var (
	settings     config.Config
	store        *history.Store
	ytdlp        *provider.YtDlp
	engine       *discovery.Engine
	playlist     *queue.Queue
	snapshotPath string
	tui          = anchor.New(anchor.Red)
	cmdRoot      = &cobra.Command{
		Use:                "youterm",
		Short:              "Stream music from YouTube in the terminal, with smart discovery and queueing",
		SilenceUsage:       true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}
)

func init() {
	cmdRoot.PersistentFlags().String("config", "", "Path to configuration document (default XDG config dir)")
	cmdRoot.PersistentFlags().BoolP("verbose", "v", false, "Log debug messages")
}

func Execute() {
	if err := cmdRoot.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func logging(cmd *cobra.Command) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if util.ErrWrap(false)(cmd.Flags().GetBool("verbose")) {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func configPath(cmd *cobra.Command) (string, error) {
	if path := util.ErrWrap("")(cmd.Flags().GetString("config")); path != "" {
		return path, nil
	}
	return config.DefaultPath()
}

// setup wires the components every command relies on:
// history and queue failures only degrade to empty state
func setup(cmd *cobra.Command, _ []string) (err error) {
	logging(cmd)

	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	if settings, err = config.Load(path); err != nil {
		return err
	}

	paths, err := history.DefaultPaths()
	if err != nil {
		return err
	}
	store = history.Open(paths, settings.History)
	if err := store.Load(); err != nil {
		log.Warn().Err(err).Msg("listening history partially loaded")
	}

	ytdlp = provider.NewYtDlp()
	var searcher provider.SearchProvider = ytdlp
	if settings.CacheSize > 0 {
		searcher = provider.NewCached(ytdlp, settings.CacheSize)
	}
	engine = discovery.New(searcher, quality.New(settings.Quality), store, settings.Discovery)
	playlist = queue.New(engine, store, settings.Queue)

	if snapshotPath, err = queue.DefaultPath(); err != nil {
		return err
	}
	snapshot, err := queue.Load(snapshotPath)
	if err != nil {
		log.Warn().Err(err).Str("path", snapshotPath).Msg("queue not restored")
		return nil
	}
	if snapshot.Mode == "" {
		snapshot.Mode = store.Preferences().ShuffleMode
	}
	if err := playlist.Restore(snapshot); err != nil {
		log.Warn().Err(err).Msg("queue not restored")
	}
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	playlist.Close()
	return errors.Join(
		queue.Save(snapshotPath, playlist.Snapshot()),
		store.Flush(),
	)
}
