// Package inmemdb is a map-backed implementation of the repositories, used by tests and demos.
package inmemdb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/admission"
	"github.com/shuleapp/shule/core/finance"
	"github.com/shuleapp/shule/core/learner"
	"github.com/shuleapp/shule/core/performance"
	"github.com/shuleapp/shule/core/school"
	"github.com/shuleapp/shule/core/user"
)

var errConflict = core.NewConflictError("a record with the same values already exists")

type tables struct {
	users         map[string]user.User
	grades        map[string]school.Grade
	streams       map[string]school.Stream
	areas         map[string]school.LearningArea
	teachers      map[string]school.Teacher
	learners      map[string]learner.Learner
	parents       map[string]learner.Parent
	records       map[string]performance.Record
	feeStructures map[string]finance.FeeStructure
	invoices      map[string]finance.Invoice
	payments      map[string]finance.Payment
	applications  map[string]admission.Application
	sequences     map[string]int
}

func newTables() *tables {
	return &tables{
		users:         make(map[string]user.User),
		grades:        make(map[string]school.Grade),
		streams:       make(map[string]school.Stream),
		areas:         make(map[string]school.LearningArea),
		teachers:      make(map[string]school.Teacher),
		learners:      make(map[string]learner.Learner),
		parents:       make(map[string]learner.Parent),
		records:       make(map[string]performance.Record),
		feeStructures: make(map[string]finance.FeeStructure),
		invoices:      make(map[string]finance.Invoice),
		payments:      make(map[string]finance.Payment),
		applications:  make(map[string]admission.Application),
		sequences:     make(map[string]int),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func (t *tables) clone() *tables {
	return &tables{
		users:         cloneMap(t.users),
		grades:        cloneMap(t.grades),
		streams:       cloneMap(t.streams),
		areas:         cloneMap(t.areas),
		teachers:      cloneMap(t.teachers),
		learners:      cloneMap(t.learners),
		parents:       cloneMap(t.parents),
		records:       cloneMap(t.records),
		feeStructures: cloneMap(t.feeStructures),
		invoices:      cloneMap(t.invoices),
		payments:      cloneMap(t.payments),
		applications:  cloneMap(t.applications),
		sequences:     cloneMap(t.sequences),
	}
}

// DB holds every table in memory.
type DB struct {
	mutex   sync.RWMutex
	txMutex sync.Mutex
	t       *tables
}

func NewDB() *DB {
	return &DB{t: newTables()}
}

// Transactor snapshots the DB before running fn and restores it when fn fails.
// Transactions are serialized. The executor passed to fn is always nil.
type Transactor struct {
	db *DB
}

var _ core.Transactor = (*Transactor)(nil)

func NewTransactor(db *DB) *Transactor {
	return &Transactor{db: db}
}

func (tx *Transactor) InTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	tx.db.txMutex.Lock()
	defer tx.db.txMutex.Unlock()

	tx.db.mutex.RLock()
	snapshot := tx.db.t.clone()
	tx.db.mutex.RUnlock()

	if err := fn(nil); err != nil {
		tx.db.mutex.Lock()
		tx.db.t = snapshot
		tx.db.mutex.Unlock()
		return err
	}
	return nil
}

type Sequencer struct {
	db *DB
}

var _ core.Sequencer = (*Sequencer)(nil)

func NewSequencer(db *DB) *Sequencer {
	return &Sequencer{db: db}
}

func (s *Sequencer) Next(_ context.Context, name string, _ ...core.DBExecutor) (int, error) {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()
	s.db.t.sequences[name]++
	return s.db.t.sequences[name], nil
}

// values returns the values of m matching keep, sorted with less.
func values[V any](m map[string]V, keep func(V) bool, less func(a, b V) bool) []V {
	vals := make([]V, 0, len(m))
	for _, v := range m {
		if keep == nil || keep(v) {
			vals = append(vals, v)
		}
	}
	if less != nil {
		sort.SliceStable(vals, func(i, j int) bool { return less(vals[i], vals[j]) })
	}
	return vals
}

func contains(s, search string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(search))
}

func containsAny(search string, fields ...string) bool {
	for _, f := range fields {
		if contains(f, search) {
			return true
		}
	}
	return false
}

func strPtrEq(p *string, s string) bool {
	return p != nil && *p == s
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

// compareBool orders false before true, like SQL does.
func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
