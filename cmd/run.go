package cmd

import (
	"github.com/spf13/cobra"

	"github.com/encodeous/sift/core"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a sift node",
	Long:  `This will run a sift node on the current host, serving its share of the overlay and answering queries.`,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logPath, _ := cmd.Flags().GetString("log")

		err := core.Bootstrap(networkConfigPath, nodeConfigPath, logPath, verbose)
		if err != nil {
			panic(err)
		}
	},
	GroupID: "sift",
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("verbose", "v", false, "enable debug logging")
	runCmd.Flags().String("log", "", "append logs to this file")
}
