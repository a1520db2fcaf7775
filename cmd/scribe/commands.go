package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Corphon/SceneScribe/internal/api"
	"github.com/Corphon/SceneScribe/internal/auth"
	"github.com/Corphon/SceneScribe/internal/config"
	"github.com/Corphon/SceneScribe/internal/editor"
	"github.com/Corphon/SceneScribe/internal/models"
)

func newTokenCmd() *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Sign an access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if secret == "" {
				secret = cfg.AuthSecret
			}
			if secret == "" && !cfg.DebugMode {
				return errors.New("AUTH_SECRET_KEY is not set; a random server key cannot be reproduced here")
			}
			tc, err := api.InitializeAuth(secret, cfg.DebugMode)
			if err != nil {
				return err
			}
			token, err := auth.GenerateToken(args[0], tc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to AUTH_SECRET_KEY)")
	return cmd
}

// fileDocument 从文件读取的完整文档
type fileDocument string

func (d fileDocument) FullDocument() (string, bool) { return string(d), d != "" }

func newTransformCmd(opts *globalOptions) *cobra.Command {
	var (
		action       string
		instructions string
		docPath      string
		preview      bool
	)
	cmd := &cobra.Command{
		Use:   "transform [text|-]",
		Short: "Transform a passage with one of the four editing actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			act := models.TransformAction(strings.ToLower(action))
			if !act.Valid() {
				return fmt.Errorf("unknown action %q (expand, summarize, rephrase, revise)", action)
			}
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" {
				return errors.New("nothing to transform")
			}

			var doc editor.DocumentSource
			if docPath != "" {
				data, err := os.ReadFile(docPath)
				if err != nil {
					return err
				}
				doc = fileDocument(data)
			}
			req := editor.BuildTransformRequest(text, act, instructions, doc)

			out := cmd.OutOrStdout()
			if preview {
				prompt, err := editor.PreviewPrompt(req)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, prompt)
				return nil
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()
			result, err := opts.client().Transform(ctx, req)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(out, models.TransformationResponse{Success: true, TransformedText: result})
			}
			fmt.Fprintln(out, result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&action, "action", "a", string(models.ActionRevise), "expand|summarize|rephrase|revise")
	cmd.Flags().StringVarP(&instructions, "instructions", "i", "", "additional instructions")
	cmd.Flags().StringVar(&docPath, "doc", "", "file with the full document, sent for tone and continuity")
	cmd.Flags().BoolVar(&preview, "preview", false, "print the model prompt instead of calling the server")
	return cmd
}

func newGenerateCmd(opts *globalOptions) *cobra.Command {
	var (
		kind      string
		chapterID string
		projectID string
	)
	cmd := &cobra.Command{
		Use:   "generate [current-content|-]",
		Short: "Generate a note, beat or free text for a chapter",
		RunE: func(cmd *cobra.Command, args []string) error {
			ck := models.ContentKind(strings.ToLower(kind))
			if !ck.Valid() {
				return fmt.Errorf("unknown type %q (note, beat, text)", kind)
			}
			if strings.TrimSpace(chapterID) == "" {
				return errors.New("--chapter is required")
			}
			current := ""
			if len(args) > 0 {
				var err error
				if current, err = readInput(cmd, args); err != nil {
					return err
				}
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()
			raw, err := opts.client().Generate(ctx, models.GenerationRequest{
				Type:           ck,
				ChapterID:      chapterID,
				ProjectID:      projectID,
				CurrentContent: current,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !ck.Structured() {
				fmt.Fprintln(out, raw)
				return nil
			}
			gc, ok := models.ParseGeneratedContent(raw)
			if opts.jsonOut {
				return printJSON(out, gc)
			}
			if !ok {
				color.New(color.FgRed).Fprintln(cmd.ErrOrStderr(), "response was not structured, printing as-is")
			}
			label(out, "Title", gc.Title)
			fmt.Fprintln(out, gc.Content)
			return nil
		},
	}
	cmd.Flags().StringVarP(&kind, "type", "t", string(models.ContentText), "note|beat|text")
	cmd.Flags().StringVarP(&chapterID, "chapter", "c", "", "chapter id")
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project id")
	return cmd
}

func newIngestCmd(opts *globalOptions) *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "ingest <file|->",
		Short: "Classify a note and persist the characters, locations and events it mentions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var content string
			if args[0] == "-" {
				var err error
				if content, err = readInput(cmd, nil); err != nil {
					return err
				}
			} else {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				content = string(data)
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()
			res, err := opts.client().Ingest(ctx, models.IngestRequest{Content: content, ProjectID: projectID})
			if err != nil {
				return err
			}

			return printIngest(cmd.OutOrStdout(), res, opts.jsonOut)
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project id")
	return cmd
}

func printIngest(out io.Writer, res *models.IngestResult, jsonOut bool) error {
	if jsonOut {
		return printJSON(out, res)
	}
	heading(out, "Note "+res.NoteID)
	label(out, "Category", fmt.Sprintf("%s (%.2f)", res.Category, res.Confidence))
	label(out, "Tags", strings.Join(res.Tags, ", "))
	for _, c := range res.ExtractedEntities.Characters {
		label(out, "Character", c.Name)
	}
	for _, l := range res.ExtractedEntities.Locations {
		label(out, "Location", l.Name)
	}
	for _, e := range res.ExtractedEntities.Events {
		label(out, "Event", e.Name)
	}
	for _, r := range res.Relationships {
		label(out, "Relationship", fmt.Sprintf("%s -> %s (%s)", r.Source, r.Target, r.Type))
	}
	color.New(color.FgGreen).Fprintln(out, "✓ persisted")
	return nil
}

func newContextCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "context <chapter-id>",
		Short: "Print the context block the server assembles for a chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			text, err := opts.client().ChapterContext(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}
