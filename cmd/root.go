package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	networkConfigPath = "network.yaml"
	nodeConfigPath    = "node.yaml"
	rootKeyPath       = "root.key"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sift",
	Short: "Sift Distributed Similarity Search CLI",
	Long: `Sift is a distributed similarity search system.
Nodes store float vector objects in local buckets and answer range and
k-nearest-neighbour queries over the whole overlay network.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "init",
		Title: "Initialize Sift",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "sift",
		Title: "Sift Commands",
	})
	rootCmd.PersistentFlags().StringVarP(&nodeConfigPath, "node-config", "n", nodeConfigPath, "node-specific config")
	rootCmd.PersistentFlags().StringVarP(&networkConfigPath, "network-config", "c", networkConfigPath, "network-global config")
	rootCmd.PersistentFlags().StringVarP(&rootKeyPath, "root-key", "k", rootKeyPath, "network-global administration key")
}
