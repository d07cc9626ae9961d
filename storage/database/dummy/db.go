// Package dummydb is an in-memory storage used by tests and local runs without postgres.
package dummydb

import (
	"sync"

	"github.com/trezcool/thesisflow/core/thesis"
	"github.com/trezcool/thesisflow/core/user"
)

type (
	DB struct {
		user   *userTable
		thesis *thesisTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	thesisTable struct {
		sync.RWMutex
		table    map[string]*thesis.Thesis
		requests map[string]*thesis.SupervisionRequest
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
		thesis: &thesisTable{
			table:    make(map[string]*thesis.Thesis),
			requests: make(map[string]*thesis.SupervisionRequest),
		},
	}
}
