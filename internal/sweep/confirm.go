package sweep

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Confirmer is the human-in-the-loop gate between pre-flight and energizing.
type Confirmer interface {
	Confirm(ctx context.Context, summary Summary) (bool, error)
}

// TerminalConfirmer prints the summary and blocks on one line of operator input.
type TerminalConfirmer struct {
	In  io.Reader
	Out io.Writer
}

func IsAffirmative(answer string) bool {
	switch strings.TrimSpace(answer) {
	case "Y", "y", "yes", "Yes", "YES":
		return true
	default:
		return false
	}
}

func (c *TerminalConfirmer) Confirm(ctx context.Context, summary Summary) (bool, error) {
	fmt.Fprintln(c.Out, summary.Render())
	fmt.Fprint(c.Out, "Do you want to continue? (Y/N) ")

	type answer struct {
		line string
		err  error
	}
	answers := make(chan answer, 1)
	// A blocked read on stdin cannot be interrupted; on cancellation the
	// reader goroutine is left behind and the process exits shortly after.
	go func() {
		line, err := bufio.NewReader(c.In).ReadString('\n')
		answers <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(c.Out)
		return false, ctx.Err()
	case a := <-answers:
		if a.err != nil && !errors.Is(a.err, io.EOF) {
			return false, fmt.Errorf("failed to read confirmation: %w", a.err)
		}
		return IsAffirmative(a.line), nil
	}
}
