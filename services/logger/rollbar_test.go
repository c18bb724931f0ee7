package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/rollbar/rollbar-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/user"
)

func TestNewEntry(t *testing.T) {
	boom := errors.New("boom")
	usr := user.User{ID: "u1", Username: "bursar", Email: "bursar@test.ke", Roles: []string{user.RoleFinance}}

	e := newEntry(rollbar.ERR, "recording payment", []interface{}{
		boom,
		usr,
		map[string]interface{}{"invoice": "INV-2024-00001"},
		map[string]interface{}{"amount": 4000.0},
		user.User{ID: "u2"},
		user.User{},
		errors.New("second"),
		42,
		nil,
	})

	assert.Equal(t, boom, e.err)
	require.NotNil(t, e.person)
	assert.Equal(t, rollbar.Person{Id: "u1", Username: "bursar", Email: "bursar@test.ke"}, *e.person)
	assert.Equal(t, map[string]interface{}{
		"invoice": "INV-2024-00001",
		"amount":  4000.0,
		"roles":   []string{user.RoleFinance},
		"args":    []interface{}{"second", 42},
	}, e.extras)
}

func TestEntry_String(t *testing.T) {
	e := newEntry(rollbar.WARN, "report cache", []interface{}{
		map[string]interface{}{"grade": "Grade 4", "term": 1},
		user.User{ID: "u3", Username: "teacher"},
	})
	assert.Equal(t, "WARNING report cache user=teacher grade=Grade 4 term=1", e.String())

	e = newEntry(rollbar.ERR, "sending email", []interface{}{errors.New("sendgrid status 503")})
	assert.Equal(t, "ERROR sending email\nsendgrid status 503", e.String())
}

func TestRollbarLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), core.NewTestConfig())
	logger.Enable(false)

	logger.Info("report card sent", map[string]interface{}{"learner": "ADM/2024/0001"})
	assert.Equal(t, "INFO report card sent learner=ADM/2024/0001\n", buf.String())
}
