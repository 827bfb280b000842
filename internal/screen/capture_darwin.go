//go:build darwin

package screen

import "image"

func toolGrab(dir string) (image.Image, error) {
	path := toolPath(dir)
	return runTool(path, "screencapture", "-x", "-t", "png", "-m", path)
}
