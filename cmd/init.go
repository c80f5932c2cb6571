package cmd

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/encodeous/sift/network"
	"github.com/encodeous/sift/state"
)

// initCmd creates a fresh node configuration with a generated key.
var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create a node configuration",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			_ = cmd.Usage()
			return
		}

		name := args[0]
		err := state.NameValidator(name)
		if err != nil {
			fmt.Printf("Invalid name: %s\n", name)
			os.Exit(-1)
		}

		relay, _ := cmd.Flags().GetBool("relay")
		capacity, _ := cmd.Flags().GetInt("capacity")

		nodeCfg := state.NodeCfg{
			Id:       network.NodeId(name),
			Key:      state.GenerateKey(),
			Bind:     cmd.Flag("bind").Value.String(),
			HttpBind: cmd.Flag("http-bind").Value.String(),
			Capacity: capacity,
			Relay:    relay,
		}

		ncfg, err := yaml.Marshal(&nodeCfg)
		if err != nil {
			panic(err)
		}

		err = os.WriteFile(nodeConfigPath, ncfg, 0700)
		if err != nil {
			panic(err)
		}

		pub, _ := nodeCfg.Key.Pubkey().MarshalText()
		fmt.Printf("Created %s. Public key: %s\n", nodeConfigPath, string(pub))
	},
	GroupID: "init",
}

// rootKeyCmd creates the administration key used to sign config bundles.
var rootKeyCmd = &cobra.Command{
	Use:   "rootkey",
	Short: "Create a network administration key",
	Run: func(cmd *cobra.Command, args []string) {
		key := state.GenerateKey()
		out, err := key.MarshalText()
		if err != nil {
			panic(err)
		}
		err = os.WriteFile(rootKeyPath, out, 0600)
		if err != nil {
			panic(err)
		}
		pub, _ := key.Pubkey().MarshalText()
		fmt.Printf("Created %s. Public key: %s\n", rootKeyPath, string(pub))
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(rootKeyCmd)

	initCmd.Flags().String("bind", "", "protocol listen address")
	initCmd.Flags().String("http-bind", "", "http api listen address")
	initCmd.Flags().Int("capacity", 0, "bucket object limit, 0 for unbounded")
	initCmd.Flags().Bool("relay", false, "forward queries without storing or answering")
}
