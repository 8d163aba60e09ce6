package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prn-tf/amethyst-cdn/internal/service"
)

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Inspect the content index",
}

var contentInspectCmd = &cobra.Command{
	Use:   "inspect <namespace> <content-id>",
	Short: "Print the index entry of one object",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, app, logger, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		content := service.NewContentService(app.Repos.Content, app.Backend, nil, logger, 0)
		entry, err := content.Inspect(ctx, args[0], args[1])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entry)
	},
}

var contentCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of indexed objects",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, app, logger, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		content := service.NewContentService(app.Repos.Content, app.Backend, nil, logger, 0)
		n, err := content.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

func init() {
	contentCmd.AddCommand(contentInspectCmd, contentCountCmd)
}
