package cmd

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/examiz/internal/llm"
	"github.com/abhisek/examiz/internal/store"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect recorded feedback requests",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent feedback requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")
		if purpose != "" && !slices.Contains(llm.Purposes(), purpose) {
			return fmt.Errorf("unknown purpose %q (want one of %s)", purpose, strings.Join(llm.Purposes(), ", "))
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		events, err := s.EventRepo().QueryLLMEvents(cmd.Context(), store.QueryOpts{Limit: limit, Purpose: purpose})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}

		w := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintln(w, "No feedback requests recorded.")
			return nil
		}

		fmt.Fprintf(w, "%-5s  %-19s  %-19s  %-28s  %-6s  %-6s  %-7s  %s\n",
			"ID", "Timestamp", "Purpose", "Model", "In", "Out", "Ms", "Result")
		fmt.Fprintln(w, strings.Repeat("─", 110))
		for _, e := range events {
			fmt.Fprintf(w, "%-5d  %-19s  %-19s  %-28s  %-6d  %-6d  %-7d  %s\n",
				e.ID,
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				e.Purpose,
				truncate(e.Model, 28),
				e.InputTokens,
				e.OutputTokens,
				e.LatencyMs,
				outcome(e.Success),
			)
		}
		return nil
	},
}

// outcome names what the learner saw for a request.
func outcome(success bool) string {
	if success {
		return "ai"
	}
	return "template"
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show the prompt and reply of one request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		e, err := s.EventRepo().GetLLMEvent(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}
		if e == nil {
			return fmt.Errorf("event %d not found", id)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "ID:        %d\n", e.ID)
		fmt.Fprintf(w, "Time:      %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "Purpose:   %s\n", e.Purpose)
		fmt.Fprintf(w, "Provider:  %s (%s)\n", e.Provider, e.Model)
		fmt.Fprintf(w, "Tokens:    %d in / %d out\n", e.InputTokens, e.OutputTokens)
		fmt.Fprintf(w, "Latency:   %dms\n", e.LatencyMs)
		fmt.Fprintf(w, "Feedback:  %s\n", outcome(e.Success))
		if e.ErrorMessage != "" {
			fmt.Fprintf(w, "Error:     %s\n", e.ErrorMessage)
		}

		section(w, "PROMPT", e.RequestBody)
		section(w, "REPLY", e.ResponseBody)
		return nil
	},
}

func section(w io.Writer, title, body string) {
	sep := strings.Repeat("─", 60)
	fmt.Fprintf(w, "\n%s\n%s\n%s\n", sep, title, sep)
	if body == "" {
		body = "(not captured)"
	}
	fmt.Fprintln(w, body)
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show feedback request counts, fallbacks and estimated cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		rows, err := s.EventRepo().LLMUsageByPurpose(ctx)
		if err != nil {
			return fmt.Errorf("query usage: %w", err)
		}

		w := cmd.OutOrStdout()
		if len(rows) == 0 {
			fmt.Fprintln(w, "No feedback requests recorded.")
			return nil
		}

		renderPurposeUsage(w, rows)

		byModel, err := s.EventRepo().LLMUsageByModel(ctx)
		if err != nil {
			return fmt.Errorf("query model usage: %w", err)
		}
		renderModelCost(w, byModel)
		return nil
	},
}

// renderPurposeUsage prints one line per known purpose, including those
// never called, followed by any unrecognised labels.
func renderPurposeUsage(w io.Writer, rows []store.UsageRow) {
	byPurpose := make(map[string]store.UsageRow, len(rows))
	order := llm.Purposes()
	for _, r := range rows {
		if _, known := byPurpose[r.Purpose]; !known && !slices.Contains(order, r.Purpose) {
			order = append(order, r.Purpose)
		}
		byPurpose[r.Purpose] = r
	}

	rule := strings.Repeat("─", 78)
	fmt.Fprintln(w, "Feedback requests")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-19s  %6s  %8s  %10s  %10s  %8s\n", "Purpose", "Calls", "Template", "Input", "Output", "Avg Ms")
	fmt.Fprintln(w, rule)

	var total store.UsageRow
	for _, p := range order {
		r := byPurpose[p]
		fmt.Fprintf(w, "%-19s  %6d  %8d  %10d  %10d  %8d\n",
			p, r.Calls, r.Failed, r.InputTokens, r.OutputTokens, r.AvgLatencyMs)
		total.Calls += r.Calls
		total.Failed += r.Failed
		total.InputTokens += r.InputTokens
		total.OutputTokens += r.OutputTokens
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-19s  %6d  %8d  %10d  %10d\n",
		"TOTAL", total.Calls, total.Failed, total.InputTokens, total.OutputTokens)
}

func renderModelCost(w io.Writer, rows []store.UsageRow) {
	if len(rows) == 0 {
		return
	}
	rule := strings.Repeat("─", 72)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Estimated cost (USD)")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-32s  %6s  %10s  %10s  %9s\n", "Model", "Calls", "Input", "Output", "Cost")
	fmt.Fprintln(w, rule)

	var totalCost float64
	var unknown []string
	for _, r := range rows {
		cost := "?"
		if p := llm.LookupCost(r.Model); p != nil {
			c := p.Cost(r.InputTokens, r.OutputTokens)
			totalCost += c
			cost = formatCost(c)
		} else {
			unknown = append(unknown, r.Model)
		}
		fmt.Fprintf(w, "%-32s  %6d  %10d  %10d  %9s\n",
			truncate(r.Model, 32), r.Calls, r.InputTokens, r.OutputTokens, cost)
	}

	fmt.Fprintln(w, rule)
	label := "TOTAL"
	if len(unknown) > 0 {
		label = "TOTAL (partial)"
	}
	fmt.Fprintf(w, "%-32s  %6s  %10s  %10s  %9s\n", label, "", "", "", formatCost(totalCost))
	if len(unknown) > 0 {
		fmt.Fprintf(w, "\nPricing unavailable for: %s\n", strings.Join(unknown, ", "))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of requests to show")
	llmListCmd.Flags().StringP("purpose", "p", "",
		"Filter by purpose: question-feedback (practice explanations), session-feedback (evaluation reports), simulation-feedback (full simulation report)")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmViewCmd)
	llmCmd.AddCommand(llmStatsCmd)
}
