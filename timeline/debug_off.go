//go:build !debug

package timeline

const debug = false
