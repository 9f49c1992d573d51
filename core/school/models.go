package school

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edugrade/core"
)

// DefaultActivityCount is the number of activity columns a new class starts with.
const DefaultActivityCount = 3

// Bimester is one of the four fixed grading periods of the academic year.
type Bimester int

const (
	Bimester1 Bimester = iota + 1
	Bimester2
	Bimester3
	Bimester4
)

// Bimesters lists all grading periods in order.
var Bimesters = [4]Bimester{Bimester1, Bimester2, Bimester3, Bimester4}

func (b Bimester) Valid() bool {
	return b >= Bimester1 && b <= Bimester4
}

// RecoveryPair returns the bimester pair sharing a recovery exam with b:
// {1,2} share rec1 and {3,4} share rec2.
func (b Bimester) RecoveryPair() (first, second Bimester) {
	if b <= Bimester2 {
		return Bimester1, Bimester2
	}
	return Bimester3, Bimester4
}

// ClassStatus is the two-state class lifecycle; archiving is reversible
// and only changes visibility in default listings.
type ClassStatus string

const (
	StatusActive   ClassStatus = "active"
	StatusArchived ClassStatus = "archived"
)

func (s ClassStatus) Valid() bool {
	return s == StatusActive || s == StatusArchived
}

type (
	School struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// ActivityMeta describes one graded activity column in a bimester.
	ActivityMeta struct {
		Date    string `json:"date"`
		Content string `json:"content"`
	}

	// GradePeriod holds one student's scores for one bimester.
	// A null activity score means "not graded yet" and is excluded from
	// averaging, never treated as zero.
	GradePeriod struct {
		Activities []null.Float64 `json:"activities"`
		Exam       null.Float64   `json:"exam"`
		Extra      null.Float64   `json:"extra"`
	}

	Student struct {
		ID        string                   `json:"id"`
		Name      string                   `json:"name"`
		Bimesters map[Bimester]GradePeriod `json:"bimesters"`
		Rec1      null.Float64             `json:"rec1"`
		Rec2      null.Float64             `json:"rec2"`
		FinalExam null.Float64             `json:"final_exam"`
	}

	ClassRoom struct {
		ID               string                      `json:"id"`
		SchoolID         string                      `json:"school_id"`
		Name             string                      `json:"name"`
		Subject          string                      `json:"subject"`
		Year             string                      `json:"year"`
		ActivityCount    int                         `json:"activity_count"`
		Status           ClassStatus                 `json:"status"`
		ActivityMetadata map[Bimester][]ActivityMeta `json:"activity_metadata"`
		Students         []Student                   `json:"students"`
		LastModified     time.Time                   `json:"last_modified"` // UTC
	}
)

// NewSchool contains information needed to register a School.
type NewSchool struct {
	Name string `json:"name" validate:"required"`
}

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	return validate.Struct(ns)
}

// NewClass contains information needed to create a ClassRoom.
type NewClass struct {
	Name    string `json:"name" validate:"required"`
	Subject string `json:"subject" validate:"required"`
	Year    string `json:"year" validate:"required"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Subject = core.CleanString(nc.Subject)
	nc.Year = core.CleanString(nc.Year)
	return validate.Struct(nc)
}

// BulkStudents is a free-text student import: one name per line,
// blank lines discarded.
type BulkStudents struct {
	Names string `json:"names" validate:"required"`
}

func (bs *BulkStudents) Validate(validate *validator.Validate) error {
	return validate.Struct(bs)
}

// Parse splits the raw text into trimmed, non-empty names.
func (bs BulkStudents) Parse() []string {
	lines := strings.Split(bs.Names, "\n")
	names := make([]string, 0, len(lines))
	for _, line := range lines {
		if name := core.CleanString(line); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func MakeSchool(ns NewSchool) School {
	return School{ID: uuid.NewString(), Name: ns.Name}
}

func MakeClassRoom(schoolID string, nc NewClass) ClassRoom {
	meta := make(map[Bimester][]ActivityMeta, len(Bimesters))
	for _, b := range Bimesters {
		meta[b] = make([]ActivityMeta, DefaultActivityCount)
	}
	return ClassRoom{
		ID:               uuid.NewString(),
		SchoolID:         schoolID,
		Name:             nc.Name,
		Subject:          nc.Subject,
		Year:             nc.Year,
		ActivityCount:    DefaultActivityCount,
		Status:           StatusActive,
		ActivityMetadata: meta,
		Students:         []Student{},
		LastModified:     time.Now().UTC(),
	}
}

// MakeStudent initializes a Student with activityCount null activity slots
// for every bimester and null exam/extra/recovery/final scores.
func MakeStudent(name string, activityCount int) Student {
	bims := make(map[Bimester]GradePeriod, len(Bimesters))
	for _, b := range Bimesters {
		bims[b] = GradePeriod{Activities: make([]null.Float64, activityCount)}
	}
	return Student{
		ID:        uuid.NewString(),
		Name:      name,
		Bimesters: bims,
	}
}

func (p GradePeriod) clone() GradePeriod {
	cp := p
	cp.Activities = make([]null.Float64, len(p.Activities))
	copy(cp.Activities, p.Activities)
	return cp
}

func (s Student) clone() Student {
	cp := s
	cp.Bimesters = make(map[Bimester]GradePeriod, len(s.Bimesters))
	for b, period := range s.Bimesters {
		cp.Bimesters[b] = period.clone()
	}
	return cp
}

// Clone returns a deep copy; mutations operate on a copy and swap it in
// only after the local store persisted it.
func (c ClassRoom) Clone() ClassRoom {
	cp := c
	cp.ActivityMetadata = make(map[Bimester][]ActivityMeta, len(c.ActivityMetadata))
	for b, metas := range c.ActivityMetadata {
		ms := make([]ActivityMeta, len(metas))
		copy(ms, metas)
		cp.ActivityMetadata[b] = ms
	}
	cp.Students = make([]Student, 0, len(c.Students))
	for _, s := range c.Students {
		cp.Students = append(cp.Students, s.clone())
	}
	return cp
}

func (c *ClassRoom) Touch() {
	c.LastModified = time.Now().UTC()
}

func (c *ClassRoom) StudentByID(id string) (*Student, bool) {
	for i := range c.Students {
		if c.Students[i].ID == id {
			return &c.Students[i], true
		}
	}
	return nil, false
}

// AddStudents appends one Student per name, each shaped to the class's
// current activity count; all-or-nothing for the batch.
func (c *ClassRoom) AddStudents(names []string) []Student {
	added := make([]Student, 0, len(names))
	for _, name := range names {
		added = append(added, MakeStudent(name, c.ActivityCount))
	}
	c.Students = append(c.Students, added...)
	c.Touch()
	return added
}

// AddActivityColumn grows the class by one activity: the count, every
// bimester's metadata and every student's activity slots move together
// so the shape invariant never observably breaks.
func (c *ClassRoom) AddActivityColumn() {
	c.ActivityCount++
	for _, b := range Bimesters {
		c.ActivityMetadata[b] = append(c.ActivityMetadata[b], ActivityMeta{})
	}
	for i := range c.Students {
		for _, b := range Bimesters {
			period := c.Students[i].Bimesters[b]
			period.Activities = append(period.Activities, null.Float64{})
			c.Students[i].Bimesters[b] = period
		}
	}
	c.Touch()
}

// SetActivityMeta replaces the metadata entry at (bimester, index).
// An out-of-range index is a programmer error: it panics rather than
// silently corrupting the activity grid.
func (c *ClassRoom) SetActivityMeta(b Bimester, idx int, meta ActivityMeta) {
	c.mustValidIndex(b, idx)
	c.ActivityMetadata[b][idx] = meta
	c.Touch()
}

// SetActivityScore sets one student's score for the activity at
// (bimester, index); a null score clears the grade.
func (c *ClassRoom) SetActivityScore(studentID string, b Bimester, idx int, score null.Float64) error {
	c.mustValidIndex(b, idx)
	st, ok := c.StudentByID(studentID)
	if !ok {
		return ErrStudentNotFound
	}
	st.Bimesters[b].Activities[idx] = score
	c.Touch()
	return nil
}

func (c *ClassRoom) SetExam(studentID string, b Bimester, score null.Float64) error {
	return c.setPeriodField(studentID, b, func(p *GradePeriod) { p.Exam = score })
}

func (c *ClassRoom) SetExtra(studentID string, b Bimester, score null.Float64) error {
	return c.setPeriodField(studentID, b, func(p *GradePeriod) { p.Extra = score })
}

func (c *ClassRoom) setPeriodField(studentID string, b Bimester, set func(*GradePeriod)) error {
	if !b.Valid() {
		panic(fmt.Sprintf("school: invalid bimester %d", b))
	}
	st, ok := c.StudentByID(studentID)
	if !ok {
		return ErrStudentNotFound
	}
	period := st.Bimesters[b]
	set(&period)
	st.Bimesters[b] = period
	c.Touch()
	return nil
}

// SetRecovery sets the shared recovery-exam score of the pair that
// bimester b belongs to.
func (c *ClassRoom) SetRecovery(studentID string, b Bimester, score null.Float64) error {
	if !b.Valid() {
		panic(fmt.Sprintf("school: invalid bimester %d", b))
	}
	st, ok := c.StudentByID(studentID)
	if !ok {
		return ErrStudentNotFound
	}
	if first, _ := b.RecoveryPair(); first == Bimester1 {
		st.Rec1 = score
	} else {
		st.Rec2 = score
	}
	c.Touch()
	return nil
}

func (c *ClassRoom) SetFinalExam(studentID string, score null.Float64) error {
	st, ok := c.StudentByID(studentID)
	if !ok {
		return ErrStudentNotFound
	}
	st.FinalExam = score
	c.Touch()
	return nil
}

func (c *ClassRoom) RemoveStudent(studentID string) bool {
	for i := range c.Students {
		if c.Students[i].ID == studentID {
			c.Students = append(c.Students[:i], c.Students[i+1:]...)
			c.Touch()
			return true
		}
	}
	return false
}

func (c *ClassRoom) Archive() {
	c.Status = StatusArchived
	c.Touch()
}

func (c *ClassRoom) Restore() {
	c.Status = StatusActive
	c.Touch()
}

func (c *ClassRoom) mustValidIndex(b Bimester, idx int) {
	if !b.Valid() {
		panic(fmt.Sprintf("school: invalid bimester %d", b))
	}
	if idx < 0 || idx >= c.ActivityCount {
		panic(fmt.Sprintf("school: activity index %d out of range [0,%d)", idx, c.ActivityCount))
	}
}

// CheckShape verifies the activity-count invariant over the whole class;
// a violation means a bug upstream (fail fast beats wrong grades).
func (c ClassRoom) CheckShape() error {
	for _, b := range Bimesters {
		if got := len(c.ActivityMetadata[b]); got != c.ActivityCount {
			return fmt.Errorf("class %s: bimester %d has %d metadata entries, want %d", c.ID, b, got, c.ActivityCount)
		}
	}
	for _, st := range c.Students {
		for _, b := range Bimesters {
			if got := len(st.Bimesters[b].Activities); got != c.ActivityCount {
				return fmt.Errorf("class %s: student %s bimester %d has %d activity slots, want %d",
					c.ID, st.ID, b, got, c.ActivityCount)
			}
		}
	}
	return nil
}
