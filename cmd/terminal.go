package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/abhisek/examiz/internal/feedback"
	"github.com/abhisek/examiz/internal/question"
	"github.com/abhisek/examiz/internal/session"
)

var errQuit = errors.New("quit")

const sessionHelp = "Type an option letter to answer, or: next, prev, finish, time, quit"

// readLines feeds trimmed input lines to a channel that is closed at EOF.
func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		s := bufio.NewScanner(r)
		for s.Scan() {
			ch <- strings.TrimSpace(s.Text())
		}
	}()
	return ch
}

// driveSession runs a loaded controller to completion from line input.
func driveSession(ctx context.Context, w io.Writer, lines <-chan string, c *session.Controller) error {
	fmt.Fprintln(w, sessionHelp)
	shown := -1
	for {
		v := c.Snapshot()
		if v.State == session.StateComplete {
			return nil
		}
		if v.Index != shown {
			renderQuestion(w, v)
			shown = v.Index
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.Done():
			if c.Snapshot().FinishReason == session.FinishReasonTimeExpired {
				fmt.Fprintln(w, "\nTime is up.")
			}
			return nil
		case line, ok := <-lines:
			if !ok {
				return errQuit
			}
			if err := handleLine(ctx, w, c, line, &shown); err != nil {
				return err
			}
		}
	}
}

func handleLine(ctx context.Context, w io.Writer, c *session.Controller, line string, shown *int) error {
	var err error
	switch cmd := strings.ToLower(line); cmd {
	case "", "next", "n":
		err = c.NextQuestion(ctx)
	case "prev", "p":
		err = c.PreviousQuestion()
		*shown = -1
	case "finish", "f":
		fmt.Fprintln(w, "Finishing...")
		err = c.Finish(ctx)
	case "time", "t":
		v := c.Snapshot()
		if v.Mode == session.ModeEvaluation {
			fmt.Fprintf(w, "Time remaining: %s\n", v.Remaining.Round(time.Second))
		} else {
			fmt.Fprintln(w, "Practice sessions are untimed.")
		}
	case "quit", "q":
		return errQuit
	case "help", "?":
		fmt.Fprintln(w, sessionHelp)
	default:
		if len(cmd) != 1 {
			fmt.Fprintln(w, sessionHelp)
			return nil
		}
		if err := c.SelectOption(cmd); err != nil {
			return report(w, err)
		}
		fb, err := c.SubmitAnswer(ctx)
		if err != nil {
			return report(w, err)
		}
		if fb != nil {
			renderQuestionFeedback(w, fb)
		} else {
			fmt.Fprintf(w, "Recorded %s.\n", strings.ToUpper(cmd))
		}
	}
	return report(w, err)
}

// report prints recoverable errors and passes the rest up.
func report(w io.Writer, err error) error {
	var invalid *session.InvalidSubmissionError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &invalid), errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrFinishPending):
		fmt.Fprintln(w, "!", err)
		return nil
	}
	return err
}

func renderQuestion(w io.Writer, v session.View) {
	q := v.Question
	fmt.Fprintf(w, "\n[%d/%d] %s", v.Index+1, v.Total, q.Competency)
	if v.Mode == session.ModeEvaluation {
		fmt.Fprintf(w, "  (%s left)", v.Remaining.Round(time.Second))
	}
	fmt.Fprintln(w)
	if q.Context != "" {
		fmt.Fprintln(w, q.Context)
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, q.Prompt)
	for i, o := range q.Options {
		l := question.Letter(i)
		mark := " "
		if l == v.Selected {
			mark = "*"
		}
		fmt.Fprintf(w, " %s %s) %s\n", mark, l, o)
	}
	if v.Submitted {
		fmt.Fprintln(w, "(answered)")
	}
}

func renderQuestionFeedback(w io.Writer, fb *feedback.QuestionFeedback) {
	fmt.Fprintf(w, "\n%s\n%s\n", fb.Title, fb.Explanation)
	if fb.Tip != "" {
		fmt.Fprintf(w, "Tip: %s\n", fb.Tip)
	}
}

func renderEvaluation(w io.Writer, r feedback.EvaluationResult) {
	sep := strings.Repeat("\u2500", 60)
	fmt.Fprintln(w, sep)
	fmt.Fprintf(w, "%s: %d/%d correct (%.1f%%)", r.ModuleName, r.Correct, r.Total, r.Percentage)
	if r.Unanswered > 0 {
		fmt.Fprintf(w, ", %d unanswered", r.Unanswered)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Score: %d/%d  Level: %s\n", r.Score, r.Scale.Max(), r.Level)
	if r.LevelDescription != "" {
		fmt.Fprintln(w, r.LevelDescription)
	}
	fmt.Fprintln(w, sep)
	renderList(w, "Strengths", r.Strengths)
	renderList(w, "Weaknesses", r.Weaknesses)
	renderList(w, "Recommendations", r.Recommendations)
	renderList(w, "Strategies", r.Strategies)
	if r.Analysis != "" {
		fmt.Fprintf(w, "\n%s\n", r.Analysis)
	}
	if len(r.ByCompetency) > 0 {
		fmt.Fprintln(w, "\nBy competency:")
		for _, c := range r.ByCompetency {
			fmt.Fprintf(w, "  %-28s %d/%d (%.0f%%)\n", c.Competency, c.Correct, c.Total, c.Percentage)
		}
	}
	fmt.Fprintf(w, "\nFeedback source: %s\n", r.Provenance)
}

func renderList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "  - %s\n", it)
	}
}
