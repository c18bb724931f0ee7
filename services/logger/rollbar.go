package logsvc

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/user"
)

// RollbarLogger reports to rollbar and mirrors every entry to a standard logger.
//
// Log args may be: an error (the first one becomes the reported error), a map[string]interface{} of extras
// (maps are merged), a user.User (the acting user) or anything else, kept under the "args" extra.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetCustom(map[string]interface{}{"app": conf.AppName})
	rollbar.SetEnabled(conf.RollbarToken != "")
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

type entry struct {
	level  string
	msg    string
	err    error
	person *rollbar.Person
	extras map[string]interface{}
}

func newEntry(level, msg string, args []interface{}) entry {
	e := entry{level: level, msg: msg, extras: make(map[string]interface{})}
	var others []interface{}
	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
		case error:
			if e.err == nil {
				e.err = v
			} else {
				others = append(others, v.Error())
			}
		case map[string]interface{}:
			for k, val := range v {
				e.extras[k] = val
			}
		case user.User:
			// the first known user is the actor
			if e.person == nil && v.ID != "" {
				e.person = &rollbar.Person{Id: v.ID, Username: v.Username, Email: v.Email}
				if len(v.Roles) > 0 {
					e.extras["roles"] = v.Roles
				}
			}
		default:
			others = append(others, v)
		}
	}
	if len(others) > 0 {
		e.extras["args"] = others
	}
	return e
}

func (e entry) report() {
	ctx := context.Background()
	if e.person != nil {
		ctx = rollbar.NewPersonContext(ctx, e.person)
	}
	if e.err != nil {
		extras := e.extras
		if e.msg != "" {
			extras = make(map[string]interface{}, len(e.extras)+1)
			for k, v := range e.extras {
				extras[k] = v
			}
			extras["message"] = e.msg
		}
		rollbar.ErrorWithExtrasAndContext(ctx, e.level, e.err, extras)
		return
	}
	rollbar.MessageWithExtrasAndContext(ctx, e.level, e.msg, e.extras)
}

// String renders e on one line: LEVEL msg key=value... with keys sorted, then the error with its stack.
func (e entry) String() string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(e.level))
	b.WriteByte(' ')
	b.WriteString(e.msg)

	if e.person != nil {
		fmt.Fprintf(&b, " user=%s", e.person.Username)
	}
	keys := make([]string, 0, len(e.extras))
	for k := range e.extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.extras[k])
	}
	if e.err != nil {
		fmt.Fprintf(&b, "\n%+v", e.err)
	}
	return b.String()
}

func (l RollbarLogger) log(level, msg string, args []interface{}) {
	e := newEntry(level, msg, args)
	e.report()
	l.std.Println(e.String())
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	l.log(rollbar.DEBUG, msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	l.log(rollbar.INFO, msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	l.log(rollbar.WARN, msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	l.log(rollbar.ERR, msg, args)
}

// Fatal waits for pending rollbar items before exiting.
func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
