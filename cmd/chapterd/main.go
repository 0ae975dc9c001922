package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chapterd",
	Short: "Chapter download server",
	Long:  "Downloads series chapters to local storage, tracks what is already on disk and resumes the queue across restarts",
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
