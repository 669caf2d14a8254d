package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"deckcast/internal/orchestrator"
	"deckcast/internal/presenter"
	"deckcast/internal/task"
)

func newSubmitCommand(cctx *commandContext) *cobra.Command {
	var (
		watch             bool
		mediaFlag         string
		typeFlag          string
		sourceFlag        string
		voiceLanguage     string
		subtitleLanguage  string
		transcriptLang    string
		resolution        string
		generateAvatar    bool
		generateSubtitles bool
	)

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Upload a document and start a generation task",
		Long: `Upload a PDF or slide deck to the generation backend and start producing
the configured outputs. The session follows the new task; add --watch to stay
attached until it finishes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := orchestrator.SubmitOptions{
				Path:               args[0],
				VoiceLanguage:      voiceLanguage,
				SubtitleLanguage:   subtitleLanguage,
				TranscriptLanguage: transcriptLang,
				VideoResolution:    resolution,
			}
			if typeFlag != "" {
				parsed, ok := task.ParseTaskType(typeFlag)
				if !ok {
					return fmt.Errorf("unknown task type %q (expected video, podcast, or both)", typeFlag)
				}
				opts.TaskType = parsed
			}
			if sourceFlag != "" {
				parsed, ok := task.ParseSourceType(sourceFlag)
				if !ok {
					return fmt.Errorf("unknown source type %q (expected pdf or slides)", sourceFlag)
				}
				opts.SourceType = parsed
			}
			var pin presenter.Media
			if mediaFlag != "" {
				parsed, ok := presenter.ParseMedia(mediaFlag)
				if !ok {
					return fmt.Errorf("unknown media tab %q (expected video or audio)", mediaFlag)
				}
				pin = parsed
			}
			if cmd.Flags().Changed("avatar") {
				opts.GenerateAvatar = &generateAvatar
			}
			if cmd.Flags().Changed("subtitles") {
				opts.GenerateSubtitles = &generateSubtitles
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			printer := newWatchPrinter(cmd.OutOrStdout())
			return cctx.withSession(ctx, printer.hooks(), func(ctx context.Context, sess *session) error {
				submitted, err := sess.orc.Submit(ctx, opts)
				if err != nil {
					return err
				}
				if pin != "" {
					sess.orc.SelectMedia(pin)
				}

				name := filepath.Base(opts.Path)
				if submitted.HasUsableID() {
					printer.printf("Submitted %s (task %s)\n", name, submitted.ID)
				} else {
					printer.printf("Submitted %s (file %s); waiting for the backend to register the task\n", name, submitted.FileID)
				}

				if !watch {
					printer.printf("Follow progress with `deckcast watch`.\n")
					return nil
				}
				return followTask(ctx, sess, printer)
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Stay attached until the task finishes")
	cmd.Flags().StringVar(&mediaFlag, "media", "", "Pin the completed media tab (video or audio)")
	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "Outputs to generate (video, podcast, or both)")
	cmd.Flags().StringVar(&sourceFlag, "source", "", "Document kind (pdf or slides); inferred from the extension when omitted")
	cmd.Flags().StringVar(&voiceLanguage, "voice-language", "", "Narration language (BCP 47 tag)")
	cmd.Flags().StringVar(&subtitleLanguage, "subtitle-language", "", "Subtitle language (BCP 47 tag)")
	cmd.Flags().StringVar(&transcriptLang, "transcript-language", "", "Transcript language; defaults to the voice language")
	cmd.Flags().StringVar(&resolution, "resolution", "", "Video resolution (480p, 720p, or 1080p)")
	cmd.Flags().BoolVar(&generateAvatar, "avatar", false, "Render a presenter avatar in the video")
	cmd.Flags().BoolVar(&generateSubtitles, "subtitles", false, "Burn subtitles into the video")

	return cmd
}
