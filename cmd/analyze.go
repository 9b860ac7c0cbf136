/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/

// The analyze and download commands run the page's requests from a terminal.
//
// Example usage:
//
//	videfly analyze https://example.com/v.mp4 --thumbnail-out=thumb.jpg
//	videfly download https://example.com/v.mp4 --output=clip.mp4
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/seckatie/videfly/internal/core"
	"github.com/spf13/cobra"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Fetch the thumbnail and metadata for a video URL",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runAnalyze(cmd, args[0]); err != nil {
			log.Fatalf("Analyze failed: %v", err)
		}
	},
}

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download <url>",
	Short: "Download the full video for a URL",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDownload(cmd, args[0]); err != nil {
			log.Fatalf("Download failed: %v", err)
		}
	},
}

// newCLISession builds an analyzer and a session that live for one command.
func newCLISession(cmd *cobra.Command) (*core.Analyzer, *core.Session, error) {
	client, err := newBackendClient(cmd)
	if err != nil {
		return nil, nil, err
	}
	objects := core.NewObjectStore(0)
	return core.NewAnalyzer(client, objects), core.NewSession(uuid.NewString(), objects), nil
}

// runAnalyze is the main function for the analyze command.
func runAnalyze(cmd *cobra.Command, videoURL string) error {
	analyzer, session, err := newCLISession(cmd)
	if err != nil {
		return err
	}
	defer session.Close()

	thumbOut, err := cmd.Flags().GetString("thumbnail-out")
	if err != nil {
		return fmt.Errorf("failed to read --thumbnail-out: %w", err)
	}

	res, err := analyzer.Analyze(context.Background(), session, videoURL)
	view := session.Snapshot()
	if view.Thumbnail != "" {
		if err := printThumbnail(cmd.OutOrStdout(), analyzer.Objects(), view.Thumbnail, thumbOut); err != nil {
			return err
		}
	}
	if err != nil {
		return errors.New(core.AnalyzeErrorMessage)
	}

	out := cmd.OutOrStdout()
	for _, row := range core.Rows(res.Metadata) {
		fmt.Fprintf(out, "%s: %s\n", row.Label, row.Value)
	}
	return nil
}

func printThumbnail(out io.Writer, objects *core.ObjectStore, ref core.Ref, path string) error {
	obj, ok := objects.Get(ref)
	if !ok {
		return core.ErrObjectNotFound
	}
	fmt.Fprintf(out, "Thumbnail: %d bytes (%s)\n", len(obj.Payload.Data), obj.Payload.ContentType)
	if path == "" {
		return nil
	}
	if err := os.WriteFile(path, obj.Payload.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write thumbnail: %w", err)
	}
	return nil
}

// runDownload is the main function for the download command.
func runDownload(cmd *cobra.Command, videoURL string) error {
	analyzer, session, err := newCLISession(cmd)
	if err != nil {
		return err
	}
	defer session.Close()

	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to read --output: %w", err)
	}

	session.SetURL(videoURL)
	ref, err := analyzer.Download(context.Background(), session)
	if err != nil {
		return errors.New(core.DownloadErrorMessage)
	}

	obj, ok := analyzer.Objects().Take(ref)
	if !ok {
		return core.ErrObjectNotFound
	}
	if err := os.WriteFile(output, obj.Payload.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d bytes to %s\n", len(obj.Payload.Data), output)
	return nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(downloadCmd)

	analyzeCmd.Flags().String("thumbnail-out", "", "Write the thumbnail to this file")
	downloadCmd.Flags().String("output", core.DownloadFilename, "File to write the video to")
}
