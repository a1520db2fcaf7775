package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Corphon/SceneScribe/internal/editor"
)

type globalOptions struct {
	server  string
	token   string
	timeout time.Duration
	jsonOut bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "scribe",
		Short: "SceneScribe command line client",
		Long: `Talk to a running SceneScribe server from the terminal.

Available subcommands:
  token     - Sign an access token with the local AUTH_SECRET_KEY
  transform - Expand, summarize, rephrase or revise a passage
  generate  - Generate a note, beat or free text for a chapter
  ingest    - Run the note extraction pipeline on a file
  context   - Print the assembled context block of a chapter
  watch     - Ingest notes from a directory as they are saved`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("SCRIBE_SERVER", "http://localhost:8080"), "server base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("SCRIBE_TOKEN"), "bearer token (defaults to $SCRIBE_TOKEN)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "request timeout")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print raw JSON")

	root.AddCommand(
		newTokenCmd(),
		newTransformCmd(opts),
		newGenerateCmd(opts),
		newIngestCmd(opts),
		newContextCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

func (o *globalOptions) client() *editor.AIClient {
	return editor.NewAIClient(o.server, o.token)
}

func (o *globalOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// readInput 读取参数文本；参数为 "-" 或缺省时读取标准输入
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func heading(w io.Writer, s string) {
	fmt.Fprintln(w, color.New(color.FgCyan, color.Bold).Sprint(s))
}

func label(w io.Writer, name, value string) {
	fmt.Fprintf(w, "%s %s\n", color.YellowString(name+":"), value)
}
