package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dileep-u-k/openapi-agent/internal/agent"
	"github.com/dileep-u-k/openapi-agent/internal/history"
	"github.com/dileep-u-k/openapi-agent/internal/llm"
	"github.com/dileep-u-k/openapi-agent/internal/tools"
)

func newAskCmd() *cobra.Command {
	var query, queryFile, outputFile string
	var verbose bool
	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Send a single query and print the answer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case len(args) == 1:
				query = args[0]
			case queryFile != "":
				data, err := os.ReadFile(queryFile)
				if err != nil {
					return fmt.Errorf("failed to read query file: %w", err)
				}
				query = strings.TrimSpace(string(data))
			}
			if query == "" {
				return errors.New("no query given: pass it as an argument, --query or --query-file")
			}

			app, err := setup(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			orch, err := app.Orchestrator(cmd.Context(), "", 0)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var notify agent.StatusFunc
			if verbose {
				notify = statusPrinter(out)
			}
			res, err := orch.Run(cmd.Context(), query, nil, notify)
			if err != nil {
				return err
			}

			answer := res.Response.Text()
			fmt.Fprintln(out, answer)
			records := orch.History().All()
			if len(records) > 0 {
				printExecutionSummary(out, records)
			}
			if res.StopReason == agent.StopIterationLimit {
				fmt.Fprintf(out, "⚠️ Stopped after %d iterations without a final answer.\n", res.Iterations)
			}
			if outputFile != "" {
				if err := writeOutput(outputFile, answer, records); err != nil {
					return err
				}
				fmt.Fprintf(out, "Response saved to %s\n", outputFile)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "query to send")
	cmd.Flags().StringVar(&queryFile, "query-file", "", "file containing the query")
	cmd.Flags().StringVar(&outputFile, "output-file", "", "file to save the response")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print progress events")
	return cmd
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long: `Start an interactive conversation. Besides questions, the prompt accepts:
  tools    show the tool executions of the last question
  errors   show only the failed tool executions
  clear    start a new conversation
  log      show the current log file
  exit     leave (also quit, bye)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			orch, err := app.Orchestrator(cmd.Context(), "", 0)
			if err != nil {
				return err
			}
			reader, err := newLineReader(os.Stdin, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer reader.Close()
			return runChat(cmd, app, orch, reader)
		},
	}
}

func runChat(cmd *cobra.Command, app *App, orch *agent.Orchestrator, reader lineReader) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Welcome to OpenAPI Agent! I can interact with API endpoints for you. Type 'exit' to quit.")

	var conversation []llm.Message
	for {
		line, err := reader.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		query := strings.TrimSpace(line)

		switch strings.ToLower(query) {
		case "":
			continue
		case "exit", "quit", "bye":
			fmt.Fprintln(out, "Thank you for using OpenAPI Agent! Goodbye!")
			return nil
		case "tools", "history":
			printExecutionSummary(out, orch.History().All())
			continue
		case "errors":
			failures := failedRecords(orch.History().All())
			if len(failures) == 0 {
				fmt.Fprintln(out, "ℹ️ No failed tool calls in this session")
			} else {
				printExecutionSummary(out, failures)
			}
			continue
		case "clear":
			conversation = nil
			orch.History().Clear()
			fmt.Fprintln(out, "ℹ️ Conversation cleared")
			continue
		case "log":
			if path := app.recorder.Path(); path != "" {
				fmt.Fprintf(out, "ℹ️ Current log file: %s\n", path)
			} else {
				fmt.Fprintln(out, "⚠️ Logging is not enabled")
			}
			continue
		}

		res, err := orch.Run(cmd.Context(), query, conversation, statusPrinter(out))
		if err != nil {
			fmt.Fprintf(out, "❌ Error: %v\n", err)
			continue
		}
		conversation = res.Transcript()
		fmt.Fprintln(out, res.Response.Text())
		if n := orch.History().Len(); n > 0 {
			fmt.Fprintf(out, "ℹ️ %d tools were used in this conversation. Type 'tools' to see details.\n", n)
		}
	}
}

func newToolsCmd() *cobra.Command {
	var save string
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Validate the configured tools and list them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			toolset, err := loadToolset(cfg.ToolsFile)
			if err != nil {
				return err
			}
			validated := tools.Validate(toolset)
			out := cmd.OutOrStdout()
			for i, t := range validated {
				if t.Name != toolset[i].Name {
					fmt.Fprintf(out, "%s (truncated from %s)\n", t.Name, toolset[i].Name)
					continue
				}
				fmt.Fprintln(out, t.Name)
			}
			fmt.Fprintf(out, "Validated %d tools\n", len(validated))
			if save != "" {
				if err := tools.SaveFile(save, validated); err != nil {
					return err
				}
				fmt.Fprintf(out, "Tools saved to %s\n", save)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&save, "save", "", "write the validated tools to this JSON file")
	return cmd
}

func statusPrinter(w io.Writer) agent.StatusFunc {
	icons := map[agent.Status]string{
		agent.StatusThinking: "🤔",
		agent.StatusResponse: "📨",
		agent.StatusToolCall: "🛠️",
		agent.StatusSuccess:  "✅",
		agent.StatusError:    "❌",
	}
	return func(msg string, status agent.Status) {
		fmt.Fprintf(w, "%s %s\n", icons[status], msg)
	}
}

func failedRecords(records []history.Record) []history.Record {
	var failures []history.Record
	for _, r := range records {
		if !r.Success {
			failures = append(failures, r)
		}
	}
	return failures
}

func printExecutionSummary(w io.Writer, records []history.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "ℹ️ No tools were used")
		return
	}
	fmt.Fprintf(w, "\nTool executions (%d):\n", len(records))
	for i, r := range records {
		mark := "✅"
		if !r.Success {
			mark = "❌"
		}
		fmt.Fprintf(w, "%d. %s %s (%.2fs)\n", i+1, mark, r.ToolName, r.DurationSeconds)
		if r.ErrorDetails != nil {
			fmt.Fprintf(w, "   Error: %s", r.ErrorDetails.Message)
			if r.ErrorDetails.StatusCode != 0 {
				fmt.Fprintf(w, " (Status: %d)", r.ErrorDetails.StatusCode)
			}
			fmt.Fprintln(w)
		}
	}
}

// writeOutput saves the answer and, if any tool ran, the execution history.
func writeOutput(path, answer string, records []history.Record) error {
	var b strings.Builder
	b.WriteString(answer)
	if len(records) > 0 {
		encoded, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode tool history: %w", err)
		}
		b.WriteString("\n\n--- Tool Execution History ---\n")
		b.Write(encoded)
		b.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to save response: %w", err)
	}
	return nil
}
