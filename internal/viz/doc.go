// Package viz renders a running simulation in the terminal.
//
// [Model] is a Bubble Tea program that steps a system between frames and
// draws it on a braille [Canvas] as a rotatable 3D point cloud, next to
// energy and temperature charts. [Picker] chooses a preset before handing
// over to the live view.
//
// # Key Bindings
//
//	Space   - Pause/Resume
//	R       - Rebuild the system from its config
//	+/-     - Steps per frame
//	Arrows  - Rotate the box
//	Z/z     - Zoom in/out
//	T       - Cycle color themes
//	?       - Show help overlay
package viz
