//go:build debug

package timeline

// Builds with the debug tag validate the zone buffer after every update that changed it.
const debug = true
