// Package static embeds the dashboard assets so the binary is
// self-contained.
package static

import "embed"

// FS holds the dashboard page, stylesheet, and client script.
//
//go:embed index.html css js
var FS embed.FS
