// Package prompt is the terminal console used by interactive runs: it shows
// the conversation as it happens and reads the operator's replies.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/spachava753/coderun/internal/models"
)

// TaskHistoryFile keeps previously entered tasks, one line per entry.
const TaskHistoryFile = "task_history.txt"

// ErrNoTask is returned by ReadTask when the operator enters nothing.
var ErrNoTask = errors.New("no task entered")

type lineReader func(prompt string) (string, error)

// Console reads operator input with line editing and prints colored
// conversation messages.
type Console struct {
	read     lineReader
	remember func(line string) error
	out      io.Writer

	roles map[string]*color.Color
	label *color.Color
	close func() error
}

// New creates a console on the process's terminal. Tasks entered through
// ReadTask are remembered in historyDir/task_history.txt; an empty historyDir
// disables task history.
func New(historyDir string) (*Console, error) {
	historyFile := ""
	if historyDir != "" {
		if err := os.MkdirAll(historyDir, 0755); err != nil {
			return nil, fmt.Errorf("creating history dir: %w", err)
		}
		historyFile = filepath.Join(historyDir, TaskHistoryFile)
	}

	rl, err := readline.NewEx(&readline.Config{
		HistoryFile:            historyFile,
		DisableAutoSaveHistory: true,
		HistorySearchFold:      true,
		InterruptPrompt:        "^C",
		EOFPrompt:              "exit",
		Stdin:                  readline.NewCancelableStdin(os.Stdin),
		Stdout:                 os.Stdout,
		Stderr:                 os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing readline: %w", err)
	}

	c := newConsole(readlineReader(rl), os.Stdout, true)
	c.close = rl.Close
	if historyFile != "" {
		c.remember = rl.SaveHistory
	}
	return c, nil
}

func readlineReader(rl *readline.Instance) lineReader {
	return func(prompt string) (string, error) {
		rl.SetPrompt(prompt)
		return rl.Readline()
	}
}

func newConsole(read lineReader, out io.Writer, colorize bool) *Console {
	roles := map[string]*color.Color{
		"system":    color.New(color.FgMagenta, color.Bold),
		"user":      color.New(color.FgGreen, color.Bold),
		"assistant": color.New(color.FgRed, color.Bold),
	}
	label := color.New(color.FgYellow, color.Bold)
	if !colorize {
		for _, c := range roles {
			c.DisableColor()
		}
		label.DisableColor()
	}

	return &Console{
		read:  read,
		out:   out,
		roles: roles,
		label: label,
	}
}

// Close releases the terminal.
func (c *Console) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// Prompt shows label and returns the operator's line. Interrupting the
// prompt or closing input returns an error; so does cancelling ctx, in which
// case the error is ctx.Err().
func (c *Console) Prompt(ctx context.Context, label string) (string, error) {
	return c.readLine(ctx, c.read, c.label.Sprint(label))
}

// Show prints a conversation message under a colored role header.
func (c *Console) Show(msg models.Message) {
	header := msg.Role
	if header != "" {
		header = strings.ToUpper(header[:1]) + header[1:]
	}
	roleColor, ok := c.roles[msg.Role]
	if !ok {
		roleColor = c.label
	}
	fmt.Fprintf(c.out, "\n%s:\n%s\n", roleColor.Sprint(header), msg.Content)
}

// Printf writes a formatted status line in the label color.
func (c *Console) Printf(format string, args ...any) {
	c.label.Fprintf(c.out, format+"\n", args...)
}

// ReadTask asks for a multi-line task. Input ends at the first empty line
// after some text, or at end of input.
func (c *Console) ReadTask(ctx context.Context) (string, error) {
	fmt.Fprintln(c.out, c.label.Sprint("What do you want to do? (finish with an empty line)"))

	var lines []string
	for {
		line, err := c.readLine(ctx, c.read, "> ")
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(line) == "" {
			if len(lines) == 0 {
				continue
			}
			break
		}
		lines = append(lines, line)
		if c.remember != nil {
			if err := c.remember(line); err != nil {
				slog.Debug("saving task history", "error", err)
			}
		}
	}

	task := strings.TrimSpace(strings.Join(lines, "\n"))
	if task == "" {
		return "", ErrNoTask
	}
	return task, nil
}

type lineResult struct {
	line string
	err  error
}

func (c *Console) readLine(ctx context.Context, read lineReader, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	done := make(chan lineResult, 1)
	go func() {
		line, err := read(prompt)
		done <- lineResult{line: line, err: err}
	}()

	select {
	case res := <-done:
		if errors.Is(res.err, readline.ErrInterrupt) {
			return "", fmt.Errorf("prompt interrupted: %w", res.err)
		}
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
