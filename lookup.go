package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/library-assistant/server/internal/arxiv"
)

var arxivCmd = &cobra.Command{
	Use:   "arxiv",
	Short: "Query the arXiv metadata API directly",
}

var arxivSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search arXiv with a query such as ti:\"attention\" AND au:\"vaswani\"",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxResults, _ := cmd.Flags().GetInt("max-results")
		res, err := arxiv.NewClient(cfg.Arxiv).SearchPapers(cmd.Context(), args[0], maxResults)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var arxivGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch one paper by arXiv id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paper, err := arxiv.NewClient(cfg.Arxiv).GetPaperByID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if paper == nil {
			return fmt.Errorf("paper %s not found", args[0])
		}
		asLibrary, _ := cmd.Flags().GetBool("library")
		if asLibrary {
			return printJSON(arxiv.ToResearchPaper(*paper))
		}
		return printJSON(paper)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	arxivSearchCmd.Flags().Int("max-results", arxiv.DefaultMaxResults, "maximum number of results")
	arxivGetCmd.Flags().Bool("library", false, "print the paper as a library research paper")
	arxivCmd.AddCommand(arxivSearchCmd, arxivGetCmd)
	rootCmd.AddCommand(arxivCmd)
}
