package cmd

import (
	"github.com/hildam/harvey-go/entity/conf"
	"github.com/spf13/cobra"
)

// Execute 执行命令行入口
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "harvey",
		Short:         "Harvey HR assistant",
		Long:          "harvey runs the HR assistant agent: an interactive console, an HTTP API and policy import tooling.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return conf.Init(configPath)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", conf.DefaultPath, "config file path")

	rootCmd.AddCommand(
		newChatCmd(),
		newServeCmd(),
		newImportPoliciesCmd(),
	)
	return rootCmd
}
