package output

import "fmt"

// Printer is the one allowed path for CLI-facing text output, so command
// implementations never call fmt.Print* directly.
type Printer interface {
	Printf(format string, a ...any) (n int, err error)
}

type ConsolePrinter struct{}

func (c ConsolePrinter) Printf(format string, a ...any) (n int, err error) {
	return fmt.Printf(format, a...)
}
