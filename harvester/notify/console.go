package notify

import (
	"io"
	"sync"

	"github.com/fatih/color"
)

// Console prints notifications for the CLI, colored by level.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	success *color.Color
	fail    *color.Color
	info    *color.Color
}

// NewConsole creates a console notifier writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{
		out:     out,
		success: color.New(color.FgGreen, color.Bold),
		fail:    color.New(color.FgRed, color.Bold),
		info:    color.New(color.FgCyan),
	}
}

func (c *Console) print(prefix string, col *color.Color, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = col.Fprint(c.out, prefix)
	_, _ = io.WriteString(c.out, " "+message+"\n")
}

func (c *Console) Success(message string) { c.print("✔", c.success, message) }
func (c *Console) Error(message string)   { c.print("✖", c.fail, message) }
func (c *Console) Info(message string)    { c.print("ℹ", c.info, message) }
