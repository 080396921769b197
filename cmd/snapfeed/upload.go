// ABOUTME: Upload command for sending a local image to the collection
// ABOUTME: Validates the file, uploads it and prints the new image id

package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:     "upload <file>",
	Aliases: []string{"up", "add"},
	Short:   "Upload an image",
	Long:    "Upload a local image file. The label defaults to the file name without extension.",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label, _ := cmd.Flags().GetString("label")

		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.GetTimeout())
		defer cancel()

		item, err := sess.uploader.Upload(ctx, args[0], label)
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		faint := color.New(color.Faint).SprintFunc()
		fmt.Printf("%s Uploaded %s %s\n", green("✓"), item.DisplayName(), faint(item.ID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringP("label", "l", "", "display name for the image")
}
