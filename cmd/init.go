package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/streambinder/youterm/config"
	"github.com/streambinder/youterm/entity"
	"github.com/streambinder/youterm/history"
	"github.com/streambinder/youterm/util"
	cmdutil "github.com/streambinder/youterm/util/cmd"
)

func init() {
	cmdRoot.AddCommand(cmdInit())
}

func cmdInit() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write default configuration and preferences documents",
		Args:  cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logging(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				force = util.ErrWrap(false)(cmd.Flags().GetBool("force"))
				mode  = entity.ShuffleMode(cmd.Flags().Lookup("shuffle").Value.String())
			)

			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			if exists(path) && !force {
				tui.Printf("configuration already at %s", path)
			} else if err := config.Save(path, config.Default()); err != nil {
				return err
			} else {
				tui.Printf("configuration written to %s", path)
			}

			paths, err := history.DefaultPaths()
			if err != nil {
				return err
			}
			if exists(paths.Preferences) && !force {
				tui.Printf("preferences already at %s", paths.Preferences)
			} else {
				prefs := entity.DefaultPreferences()
				prefs.ShuffleMode = mode
				if err := history.Open(paths, history.DefaultConfig()).SetPreferences(prefs); err != nil {
					return err
				}
				tui.Printf("preferences written to %s", paths.Preferences)
			}

			if err := cmdutil.Available(); err != nil {
				tui.AnchorPrintf("%s", err)
			}
			return nil
		},
	}
	mode := modeValue(entity.DefaultPreferences().ShuffleMode)
	cmd.Flags().BoolP("force", "f", false, "Overwrite existing documents")
	cmd.Flags().Var(&mode, "shuffle", "Default shuffle mode (sequential, smart, random)")
	return cmd
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
