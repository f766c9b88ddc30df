package tui

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/rokutools/rokuscan/internal/devicemanager"
	"github.com/rokutools/rokuscan/internal/picker"
)

// Subscriber registers for manager events
type Subscriber interface {
	Subscribe(devicemanager.Handler) func()
}

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// GetTerminalSize returns the width and height of stdout, clamped to the
// supported content width
func GetTerminalSize() (int, int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MinTerminalWidth, 24
	}
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}
	if width > MaxContentWidth {
		width = MaxContentWidth
	}
	return width, height
}

// Run shows the interactive picker until the user chooses or quits.
// A nil Selection means the user quit.
func Run(source DeviceSource, sub Subscriber) (*Selection, error) {
	events := make(chan struct{}, 1)
	unsubscribe := sub.Subscribe(func(devicemanager.Event) {
		select {
		case events <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	model := NewModel(source, events)
	model.width, _ = GetTerminalSize()

	final, err := tea.NewProgram(model, tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return nil, fmt.Errorf("picker failed: %w", err)
	}
	return final.(Model).Selection(), nil
}

// WritePlainList prints the picker list without styling, numbering the
// selectable rows. Used when stdout is not a terminal.
func WritePlainList(w io.Writer, items []picker.Item) error {
	n := 0
	for _, it := range items {
		var err error
		if it.IsSeparator() {
			if it.Label == picker.BlankSeparator {
				_, err = fmt.Fprintln(w)
			} else {
				_, err = fmt.Fprintf(w, "-- %s --\n", it.Label)
			}
		} else {
			n++
			_, err = fmt.Fprintf(w, "%2d) %s\n", n, it.Label)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
