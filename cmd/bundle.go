package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/encodeous/sift/state"
)

// bundleCmd signs and seals the network configuration for distribution.
var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Bundle the current network configuration, ready for distribution across nodes",
	Run: func(cmd *cobra.Command, args []string) {
		cfgFile, err := os.ReadFile(networkConfigPath)
		if err != nil {
			panic(err)
		}
		keyFile, err := os.ReadFile(rootKeyPath)
		if err != nil {
			panic(err)
		}
		key := &state.SiftPrivateKey{}
		err = key.UnmarshalText(bytes.TrimSpace(keyFile))
		if err != nil {
			panic(err)
		}
		bundle, err := state.BundleConfig(string(cfgFile), *key)
		if err != nil {
			panic(err)
		}

		outPath := cmd.Flag("output").Value.String()
		err = os.WriteFile(outPath, []byte(bundle), 0600)
		if err != nil {
			panic(err)
		}
		fmt.Printf("Wrote bundle to %s\n", outPath)
	},
	GroupID: "sift",
}

// unbundleCmd verifies a bundle against the administration public key and
// extracts the network configuration.
var unbundleCmd = &cobra.Command{
	Use:   "unbundle [pubkey]",
	Short: "Verify a bundle and extract the network configuration",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			_ = cmd.Usage()
			return
		}
		pubKey := &state.SiftPublicKey{}
		err := pubKey.UnmarshalText([]byte(args[0]))
		if err != nil {
			panic(err)
		}

		inPath := cmd.Flag("input").Value.String()
		bundle, err := os.ReadFile(inPath)
		if err != nil {
			panic(err)
		}

		cfg, err := state.UnbundleConfig(string(bytes.TrimSpace(bundle)), *pubKey)
		if err != nil {
			panic(err)
		}

		out, err := yaml.Marshal(cfg)
		if err != nil {
			panic(err)
		}
		err = os.WriteFile(networkConfigPath, out, 0600)
		if err != nil {
			panic(err)
		}
		fmt.Printf("Wrote network configuration to %s\n", networkConfigPath)
	},
	GroupID: "sift",
}

func init() {
	rootCmd.AddCommand(bundleCmd)
	rootCmd.AddCommand(unbundleCmd)

	bundleCmd.Flags().StringP("output", "o", "network.bundle", "bundle output path")
	unbundleCmd.Flags().StringP("input", "i", "network.bundle", "bundle input path")
}
