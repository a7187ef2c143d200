// Package seeddata embeds the end-to-end seed dataset shipped with the binary.
package seeddata

import (
	"embed"
	"io/fs"
)

//go:embed e2e/*.json
var e2e embed.FS

// E2E returns the end-to-end dataset rooted at its directory.
func E2E() fs.FS {
	sub, err := fs.Sub(e2e, "e2e")
	if err != nil {
		panic(err)
	}
	return sub
}
