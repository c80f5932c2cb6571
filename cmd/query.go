package cmd

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

// queryCmd talks to the http api of a running node.
var queryCmd = &cobra.Command{
	Use:     "query",
	Short:   "Query a running sift node over its http api",
	GroupID: "sift",
}

var rangeQueryCmd = &cobra.Command{
	Use:   "range [vector]",
	Short: "Find every object within a radius of the query vector",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			_ = cmd.Usage()
			return
		}
		params := url.Values{}
		params.Set("q", args[0])
		params.Set("radius", cmd.Flag("radius").Value.String())
		apiGet(cmd, "/search/range", params)
	},
}

var knnQueryCmd = &cobra.Command{
	Use:   "knn [vector]",
	Short: "Find the k objects nearest to the query vector",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			_ = cmd.Usage()
			return
		}
		params := url.Values{}
		params.Set("q", args[0])
		params.Set("k", cmd.Flag("k").Value.String())
		apiGet(cmd, "/search/knn", params)
	},
}

var statsQueryCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the operation counters of a running node",
	Run: func(cmd *cobra.Command, args []string) {
		apiGet(cmd, "/stats", nil)
	},
}

func apiGet(cmd *cobra.Command, path string, params url.Values) {
	addr := cmd.Flag("addr").Value.String()
	u := addr + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	resp, err := http.Get(u)
	if err != nil {
		fmt.Printf("Request failed: %s\n", err)
		os.Exit(-1)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Request failed: %s\n", err)
		os.Exit(-1)
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request failed (%s): %s\n", resp.Status, string(body))
		os.Exit(-1)
	}
	fmt.Println(string(body))
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.AddCommand(rangeQueryCmd)
	queryCmd.AddCommand(knnQueryCmd)
	queryCmd.AddCommand(statsQueryCmd)

	queryCmd.PersistentFlags().String("addr", "http://127.0.0.1:8080", "http api address of the node")
	rangeQueryCmd.Flags().Float32("radius", 0, "search radius")
	knnQueryCmd.Flags().Int("k", 10, "number of neighbours")
}
