package assets

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFS(t *testing.T) {
	files := []string{
		"common-passwords.txt.gz",
		"templates/email/_base.gohtml",
		"templates/email/_base.txt",
		"templates/email/password_reset.gohtml",
		"templates/email/report_card.txt",
		"templates/print/receipt.gohtml",
		"templates/print/report_card.gohtml",
	}
	for _, name := range files {
		t.Run(name, func(t *testing.T) {
			_, err := fs.Stat(FS, name)
			assert.NoError(t, err)
		})
	}
}
