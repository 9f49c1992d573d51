// Package inmemdb provides map-backed repositories for tests and local
// development; no data survives a restart.
package inmemdb

import (
	"sync"

	"github.com/trezcool/edugrade/core/school"
	"github.com/trezcool/edugrade/core/user"
)

type DB struct {
	mutex sync.RWMutex

	users map[string]user.User

	// per-owner collections: ownerID -> pk -> row
	schools  map[string]map[string]school.School
	classes  map[string]map[string]school.ClassRecord
	students map[string]map[string]school.StudentRecord
}

func NewDB() *DB {
	return &DB{
		users:    make(map[string]user.User),
		schools:  make(map[string]map[string]school.School),
		classes:  make(map[string]map[string]school.ClassRecord),
		students: make(map[string]map[string]school.StudentRecord),
	}
}
