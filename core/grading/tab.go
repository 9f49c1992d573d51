package grading

import (
	"github.com/pkg/errors"

	"github.com/trezcool/edugrade/core/school"
)

// Tab identifies a gradebook view: one of the four bimesters or the
// annual summary. It is the only set of views a class exposes.
type Tab string

const (
	TabBimester1 Tab = "1"
	TabBimester2 Tab = "2"
	TabBimester3 Tab = "3"
	TabBimester4 Tab = "4"
	TabAnnual    Tab = "annual"
)

var ErrInvalidTab = errors.New("invalid tab")

// ParseTab maps a path segment ("1".."4" or "annual") to a Tab.
func ParseTab(s string) (Tab, error) {
	switch t := Tab(s); t {
	case TabBimester1, TabBimester2, TabBimester3, TabBimester4, TabAnnual:
		return t, nil
	}
	return "", ErrInvalidTab
}

// Bimester returns the grading period a bimester tab refers to;
// ok is false for the annual tab.
func (t Tab) Bimester() (school.Bimester, bool) {
	switch t {
	case TabBimester1:
		return school.Bimester1, true
	case TabBimester2:
		return school.Bimester2, true
	case TabBimester3:
		return school.Bimester3, true
	case TabBimester4:
		return school.Bimester4, true
	}
	return 0, false
}
