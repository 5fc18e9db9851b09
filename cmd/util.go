package cmd

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

// The util subtree backs the exec middleware of the action runner: build
// scripts calling mv, rm or mkdir get rerouted here so these operations
// behave the same on every platform (including glob expansion on Windows,
// where no shell does it for us).

var utilCmd = &cobra.Command{
	Use:    "util",
	Short:  "Internal cross-platform helpers for build scripts",
	Hidden: true,
}

// expandArgs resolves glob patterns on Windows; POSIX shells already did
// that for us.
func expandArgs(args []string, ignoreMisses bool) ([]string, error) {
	if runtime.GOOS != "windows" {
		return args, nil
	}

	items := []string{}
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to resolve pattern %s", arg)
		}

		if matches == nil {
			if ignoreMisses {
				continue
			}
			return nil, eris.Errorf("pattern %s produced no matches", arg)
		}

		items = append(items, matches...)
	}

	return items, nil
}

var utilMvCmd = &cobra.Command{
	Use:   "mv",
	Short: "Cross-platform implementation of the POSIX mv command",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) < 2 {
			return eris.New("not enough parameters")
		}

		dest := filepath.Clean(args[len(args)-1])
		destParent := filepath.Dir(dest)
		info, err := os.Stat(destParent)
		if err != nil {
			return eris.Wrapf(err, "could not find destination directory %s", destParent)
		}
		if !info.IsDir() {
			return eris.Errorf("%s is not a directory", destParent)
		}

		info, err = os.Stat(dest)
		if err != nil && !eris.Is(err, os.ErrNotExist) {
			return eris.Wrapf(err, "failed to retrieve info about destination %s", dest)
		}
		destIsDir := err == nil && info.IsDir()

		if len(args) > 2 && !destIsDir {
			return eris.Errorf("can't move multiple items to %s because it is not a directory", dest)
		}

		items, err := expandArgs(args[:len(args)-1], false)
		if err != nil {
			return err
		}

		for _, item := range items {
			itemDest := dest
			if destIsDir {
				itemDest = filepath.Join(dest, filepath.Base(item))
			}
			if err := os.Rename(item, itemDest); err != nil {
				return eris.Wrapf(err, "failed to move %s to %s", item, itemDest)
			}
		}

		return nil
	},
}

var utilRmCmd = &cobra.Command{
	Use:   "rm",
	Short: "Cross-platform implementation of the POSIX rm command",
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, err := cmd.Flags().GetBool("recursive")
		if err != nil {
			return err
		}
		force, err := cmd.Flags().GetBool("force")
		if err != nil {
			return err
		}

		items, err := expandArgs(args, force)
		if err != nil {
			return err
		}

		for _, item := range items {
			info, err := os.Stat(item)
			if err != nil {
				if force && eris.Is(err, os.ErrNotExist) {
					continue
				}
				return eris.Wrapf(err, "could not stat %s", item)
			}

			if info.IsDir() && !recursive {
				return eris.Errorf("%s is a directory but -r wasn't passed", item)
			}
		}

		for _, item := range items {
			err := os.RemoveAll(item)
			if err != nil && (!force || !eris.Is(err, os.ErrNotExist)) {
				return eris.Wrapf(err, "could not delete %s", item)
			}
		}

		return nil
	},
}

var utilMkdirCmd = &cobra.Command{
	Use:   "mkdir",
	Short: "Cross-platform implementation of the POSIX mkdir command",
	RunE: func(cmd *cobra.Command, args []string) error {
		makeParents, err := cmd.Flags().GetBool("parents")
		if err != nil {
			return err
		}

		for _, item := range args {
			if makeParents {
				err = os.MkdirAll(item, 0770)
			} else {
				err = os.Mkdir(item, 0770)
			}

			if err != nil {
				return eris.Wrapf(err, "failed to create %s", item)
			}
		}

		return nil
	},
}

func init() {
	utilRmCmd.Flags().BoolP("recursive", "r", false, "recursively delete directories")
	utilRmCmd.Flags().BoolP("force", "f", false, "suppresses errors caused by missing files/folders")
	utilMkdirCmd.Flags().BoolP("parents", "p", false, "create parent directories as needed")

	utilCmd.AddCommand(utilMvCmd)
	utilCmd.AddCommand(utilRmCmd)
	utilCmd.AddCommand(utilMkdirCmd)
	rootCmd.AddCommand(utilCmd)
}
