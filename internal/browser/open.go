// Package browser opens URLs in the system browser.
package browser

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

// command returns the command that opens url on the current platform.
func command(url string) (*exec.Cmd, error) {
	switch rt := getRuntime(); rt {
	case "darwin":
		return exec.Command("open", url), nil
	case "linux":
		return exec.Command("xdg-open", url), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", rt)
	}
}

// Open opens the default system browser to url.
func Open(url string) error {
	cmd, err := command(url)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return cmd.Process.Release()
}

// Navigator sends the user to a URL. It always prints the URL so it can be
// opened by hand when no browser is available.
type Navigator struct {
	Out  io.Writer
	open func(string) error
}

// NewNavigator returns a Navigator that prints to out and opens the URL in
// the system browser.
func NewNavigator(out io.Writer) *Navigator {
	return &Navigator{Out: out, open: Open}
}

// Navigate prints url and tries to open it.
func (n *Navigator) Navigate(_ context.Context, url string) error {
	fmt.Fprintf(n.Out, "Opening browser to authorize cassette...\nIf it does not open, visit:\n\n  %s\n\n", url)
	if n.open == nil {
		return nil
	}
	if err := n.open(url); err != nil {
		fmt.Fprintf(n.Out, "Could not open browser: %v\n", err)
	}
	return nil
}
