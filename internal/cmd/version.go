package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crewline/foreman/internal/ux"
	"github.com/crewline/foreman/internal/version"
)

var (
	versionVerbose bool
	versionFormat  string
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the foreman version. With --verbose the commit, build date,
Go version, and platform are included.

Examples:
  foreman version
  foreman version --verbose
  foreman version --format json`,
	RunE: runVersion,
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.Current()

	if versionFormat != "" && versionFormat != "text" {
		formatter, err := ux.NewFormatter(versionFormat, &ux.FormatterOptions{NoColor: flagNoColor})
		if err != nil {
			return err
		}
		return formatter.Format(info)
	}

	if versionVerbose {
		fmt.Println(info.Detail())
		return nil
	}
	fmt.Printf("foreman %s\n", info.Short())
	return nil
}

func init() {
	versionCmd.Flags().BoolVarP(&versionVerbose, "verbose", "v", false, "show detailed version information")
	versionCmd.Flags().StringVar(&versionFormat, "format", "text", "output format: text, json, yaml")

	rootCmd.AddCommand(versionCmd)
}
