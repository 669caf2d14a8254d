package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"deckcast/internal/media"
	"deckcast/internal/pipeline"
	"deckcast/internal/task"
)

func newFetchCommand(cctx *commandContext) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "fetch [video|podcast|subtitles]...",
		Short: "Download finished artifacts for the completed task",
		Long: `Download the artifacts of the session's completed task into a directory.
Without arguments the declared outputs are fetched; naming artifacts limits
the download to those. Artifacts the backend has not produced are skipped.`,
		Args: cobra.MaximumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cctx.ensureLogger()
			if err != nil {
				return err
			}

			// Fetch reads the persisted snapshot instead of locking the
			// session; downloads must not block a running watch.
			current, ok := loadSavedTask(cfg, logger)
			if !ok {
				return errors.New("no active task; fetch needs a completed generation in the session")
			}
			if current.Status != task.StatusCompleted {
				return fmt.Errorf("task is %s; artifacts are available once it completes", current.Status)
			}
			if !current.HasUsableID() {
				return errors.New("the task has no backend identifier yet; run `deckcast status --refresh` first")
			}

			kinds, err := resolveFetchKinds(args, current.TaskType())
			if err != nil {
				return err
			}

			client, err := cctx.mediaClient(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			out := cmd.OutOrStdout()
			saved := 0
			for _, kind := range kinds {
				path, err := client.Download(ctx, current.ID, kind, outputDir)
				if err != nil {
					if errors.Is(err, pipeline.ErrNotFound) {
						fmt.Fprintf(out, "Skipped %s; the backend has not produced it.\n", kind.Filename())
						continue
					}
					return err
				}
				fmt.Fprintf(out, "Saved %s\n", path)
				saved++
			}
			if saved == 0 {
				return errors.New("no artifacts were available; try again shortly")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Directory to write artifacts into")

	return cmd
}

// resolveFetchKinds maps command arguments to artifact kinds, defaulting to
// the task's declared outputs. A task that never declared a type gets both
// primary artifacts; the probe on the backend decides what actually exists.
func resolveFetchKinds(args []string, declared task.TaskType) ([]media.Kind, error) {
	if len(args) > 0 {
		kinds := make([]media.Kind, 0, len(args))
		seen := make(map[media.Kind]struct{}, len(args))
		for _, arg := range args {
			kind, ok := media.ParseKind(arg)
			if !ok {
				return nil, fmt.Errorf("unknown artifact %q (expected video, podcast, or subtitles)", arg)
			}
			if _, dup := seen[kind]; dup {
				continue
			}
			seen[kind] = struct{}{}
			kinds = append(kinds, kind)
		}
		return kinds, nil
	}

	var kinds []media.Kind
	if declared == "" || declared.IncludesVideo() {
		kinds = append(kinds, media.KindVideo)
	}
	if declared == "" || declared.IncludesAudio() {
		kinds = append(kinds, media.KindPodcast)
	}
	return kinds, nil
}
