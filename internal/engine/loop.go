package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// ExitWord ends the read loop, compared case-insensitively.
const ExitWord = "exit"

// Prompt is written before each question.
const Prompt = "Ask a climate question (or type 'exit' to quit): "

// Loop reads questions line by line from in and writes each answer to
// out. It returns nil on the exit word or end of input, and ctx.Err()
// when ctx ends. A failed question is reported and the loop goes on.
func (e *Engine) Loop(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, Prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.EqualFold(question, ExitWord) {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		outcome, err := e.Ask(ctx, question)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Error("question failed", "error", err)
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, outcome.Text)
	}
}
