package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dracscan/internal/pkg/version"
)

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			name := "dracscan"
			if appConfig != nil && appConfig.App != nil && appConfig.App.Name != "" {
				name = appConfig.App.Name
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", name, version.GetFullVersion())
			fmt.Fprintf(out, "Build Time: %s\n", version.BuildTime)
			fmt.Fprintf(out, "Git Commit: %s\n", version.GitCommit)
			fmt.Fprintf(out, "Go Version: %s\n", version.GoVersion)
		},
	}
}
