//go:build linux

package screen

import (
	"errors"
	"image"
	"os/exec"
)

var errNoTool = errors.New("no screenshot tool found (install gnome-screenshot or scrot)")

// toolGrab prefers gnome-screenshot and falls back to scrot.
func toolGrab(dir string) (image.Image, error) {
	path := toolPath(dir)
	if _, err := exec.LookPath("gnome-screenshot"); err == nil {
		return runTool(path, "gnome-screenshot", "-f", path)
	}
	if _, err := exec.LookPath("scrot"); err == nil {
		return runTool(path, "scrot", "-o", path)
	}
	return nil, errNoTool
}
