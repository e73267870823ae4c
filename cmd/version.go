/*
Copyright © 2023 dimas maulana dimasmaulana0305@gmail.com
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var Version = "0.2.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("ctfdump", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
