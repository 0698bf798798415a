package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"shuttle/internal/ipc"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var remotePath string
	var clientID string
	var clientName string
	var mediaKind string
	var duration float64
	var transcript string
	var notes string
	var contentType string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Queue a local recording for upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			info, err := os.Stat(absPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("file does not exist: %s", absPath)
				}
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", absPath)
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Enqueue(ipc.EnqueueRequest{
					SourcePath:      absPath,
					RemotePath:      remotePath,
					ClientID:        clientID,
					ClientName:      clientName,
					MediaKind:       mediaKind,
					DurationSeconds: duration,
					Transcript:      transcript,
					Notes:           notes,
					ContentType:     contentType,
				})
				if err != nil {
					return err
				}
				if resp == nil {
					return errors.New("empty response from daemon")
				}
				if jsonOutput {
					return writeJSON(cmd, resp.Task)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued upload as task #%d (%s)\n", resp.Task.ID, filepath.Base(absPath))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&remotePath, "remote-path", "", "Destination object path in the bucket")
	cmd.Flags().StringVar(&clientID, "client-id", "", "Client identifier the recording belongs to")
	cmd.Flags().StringVar(&clientName, "client-name", "", "Client display name")
	cmd.Flags().StringVar(&mediaKind, "kind", "", "Media kind (video or audio); inferred from the extension when omitted")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Recording duration in seconds")
	cmd.Flags().StringVar(&transcript, "transcript", "", "Transcript text to attach to the task")
	cmd.Flags().StringVar(&notes, "notes", "", "Coach notes to attach to the task")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Override the Content-Type sent with the upload")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the created task as JSON")
	_ = cmd.MarkFlagRequired("remote-path")
	return cmd
}
