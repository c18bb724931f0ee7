// Package assets holds the files embedded in the binaries: templates and the common passwords list.
package assets

import "embed"

//go:embed all:templates common-passwords.txt.gz
var FS embed.FS
