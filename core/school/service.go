package school

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edugrade/core"
	"github.com/trezcool/edugrade/core/syncengine"
)

var (
	// errors
	ErrSchoolNotFound  = errors.New("school not found")
	ErrClassNotFound   = errors.New("class not found")
	ErrStudentNotFound = errors.New("student not found")
)

type (
	// Repository is the remote store contract: three flat collections,
	// upsert-by-primary-key, scoped to an owning teacher.
	Repository interface {
		UpsertSchools(ctx context.Context, ownerID string, schools []School) error
		UpsertClasses(ctx context.Context, ownerID string, classes []ClassRecord) error
		UpsertStudents(ctx context.Context, ownerID string, students []StudentRecord) error
		PruneSchools(ctx context.Context, ownerID string, keepIDs []string) error
		PruneClasses(ctx context.Context, ownerID string, keepIDs []string) error
		PruneStudents(ctx context.Context, ownerID string, keepIDs []string) error
		FetchSchools(ctx context.Context, ownerID string) ([]School, error)
		FetchClasses(ctx context.Context, ownerID string) ([]ClassRecord, error)
		FetchStudents(ctx context.Context, ownerID string) ([]StudentRecord, error)
	}

	// LocalStore is the durable local cache the snapshot is written to on
	// every mutation, before the change becomes visible.
	LocalStore interface {
		Save(ctx context.Context, ownerID string, snap Snapshot) error
		Load(ctx context.Context, ownerID string) (Snapshot, bool, error)
		Clear(ctx context.Context, ownerID string) error
	}

	Service struct {
		repo   Repository
		local  LocalStore
		logger core.Logger
		conf   *core.Config
		clock  syncengine.Clock

		mu       sync.Mutex
		sessions map[string]*Session
	}

	// Session is one teacher's local-first gradebook: an in-memory
	// snapshot plus its sync engine. Single-writer-per-device; the last
	// push wins.
	Session struct {
		ownerID string
		svc     *Service
		engine  *syncengine.Engine

		mu   sync.RWMutex
		snap Snapshot
	}
)

func NewService(repo Repository, local LocalStore, logger core.Logger, conf *core.Config, clock ...syncengine.Clock) *Service {
	var ck syncengine.Clock
	if len(clock) > 0 {
		ck = clock[0]
	}
	return &Service{
		repo:     repo,
		local:    local,
		logger:   logger,
		conf:     conf,
		clock:    ck,
		sessions: make(map[string]*Session),
	}
}

// Open returns the teacher's session, creating it on first use. The
// locally cached snapshot is served immediately; the remote snapshot
// replaces it wholesale once fetched (remote is authoritative on login,
// which can discard offline edits made on another device since the last
// sync — a known, accepted data-loss window).
func (svc *Service) Open(ctx context.Context, ownerID string) (*Session, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if sess, ok := svc.sessions[ownerID]; ok {
		return sess, nil
	}

	snap, ok, err := svc.local.Load(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "loading local snapshot")
	}
	if !ok {
		snap = Snapshot{Schools: []School{}, Classes: []ClassRoom{}}
	}

	sess := &Session{ownerID: ownerID, svc: svc, snap: snap}
	sess.engine = syncengine.New(sess.pushRemote, svc.conf.Sync.Debounce, svc.logger, svc.clock)
	svc.sessions[ownerID] = sess

	go sess.refresh(context.Background())
	return sess, nil
}

// Close flushes pending edits best-effort, clears the local cache and
// drops the session; used on logout.
func (svc *Service) Close(ctx context.Context, ownerID string) error {
	svc.mu.Lock()
	sess, ok := svc.sessions[ownerID]
	delete(svc.sessions, ownerID)
	svc.mu.Unlock()
	if !ok {
		return nil
	}

	if err := sess.engine.Flush(ctx); err != nil {
		svc.logger.Warn("flush on logout failed; local edits remain remote-pending", err)
	}
	sess.engine.Stop()
	return errors.Wrap(svc.local.Clear(ctx, ownerID), "clearing local snapshot")
}

// Session lifecycle ----------------------------------------------------------

// refresh replaces the whole snapshot with the remote one; on any fetch
// failure the local data is kept and the error only logged.
func (s *Session) refresh(ctx context.Context) {
	schools, err := s.svc.repo.FetchSchools(ctx, s.ownerID)
	if err != nil {
		s.svc.logger.Warn("fetching remote schools; keeping local snapshot", err)
		return
	}
	classes, err := s.svc.repo.FetchClasses(ctx, s.ownerID)
	if err != nil {
		s.svc.logger.Warn("fetching remote classes; keeping local snapshot", err)
		return
	}
	students, err := s.svc.repo.FetchStudents(ctx, s.ownerID)
	if err != nil {
		s.svc.logger.Warn("fetching remote students; keeping local snapshot", err)
		return
	}

	snap := Reconstitute(schools, classes, students)
	if err = s.svc.local.Save(ctx, s.ownerID, snap); err != nil {
		s.svc.logger.Error("persisting fetched snapshot", err)
		return
	}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// pushRemote decomposes the snapshot and upserts each collection; a
// failing step does not roll back the others, but any failure marks the
// whole push failed so the engine retries.
func (s *Session) pushRemote(ctx context.Context) error {
	schools, classes, students := Decompose(s.Snapshot())

	schoolIDs := make([]string, 0, len(schools))
	for _, sc := range schools {
		schoolIDs = append(schoolIDs, sc.ID)
	}
	classIDs := make([]string, 0, len(classes))
	for _, c := range classes {
		classIDs = append(classIDs, c.ID)
	}
	studentIDs := make([]string, 0, len(students))
	for _, st := range students {
		studentIDs = append(studentIDs, st.ID)
	}

	var firstErr error
	keep := func(err error, msg string) {
		if err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, msg)
		}
	}
	repo := s.svc.repo
	keep(repo.UpsertSchools(ctx, s.ownerID, schools), "upserting schools")
	keep(repo.UpsertClasses(ctx, s.ownerID, classes), "upserting classes")
	keep(repo.UpsertStudents(ctx, s.ownerID, students), "upserting students")
	keep(repo.PruneStudents(ctx, s.ownerID, studentIDs), "pruning students")
	keep(repo.PruneClasses(ctx, s.ownerID, classIDs), "pruning classes")
	keep(repo.PruneSchools(ctx, s.ownerID, schoolIDs), "pruning schools")
	return firstErr
}

// Snapshot returns a deep copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

func (s *Session) SyncStatus() syncengine.State { return s.engine.Status() }

func (s *Session) Online() bool { return s.engine.Online() }

// SetOnline feeds connectivity events into the sync engine.
func (s *Session) SetOnline(online bool) { s.engine.SetOnline(online) }

// commit runs a mutation against a deep copy, persists it to the local
// store and only then swaps it in and notifies the sync engine — a crash
// between mutation and persistence can never roll back a visible change.
func (s *Session) commit(ctx context.Context, mutate func(*Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.snap.Clone()
	if err := mutate(&work); err != nil {
		return err
	}
	if err := s.svc.local.Save(ctx, s.ownerID, work); err != nil {
		return errors.Wrap(err, "persisting local snapshot")
	}
	s.snap = work
	s.engine.NoteMutation()
	return nil
}

// Mutations ------------------------------------------------------------------

func (s *Session) CreateSchool(ctx context.Context, ns NewSchool) (School, error) {
	sc := MakeSchool(ns)
	err := s.commit(ctx, func(snap *Snapshot) error {
		snap.Schools = append(snap.Schools, sc)
		return nil
	})
	return sc, err
}

func (s *Session) RenameSchool(ctx context.Context, id string, ns NewSchool) (School, error) {
	var out School
	err := s.commit(ctx, func(snap *Snapshot) error {
		sc, ok := snap.SchoolByID(id)
		if !ok {
			return ErrSchoolNotFound
		}
		sc.Name = ns.Name
		out = *sc
		return nil
	})
	return out, err
}

// DeleteSchool removes the school and cascades to all its classes.
func (s *Session) DeleteSchool(ctx context.Context, id string) error {
	return s.commit(ctx, func(snap *Snapshot) error {
		if !snap.RemoveSchool(id) {
			return ErrSchoolNotFound
		}
		return nil
	})
}

func (s *Session) CreateClass(ctx context.Context, schoolID string, nc NewClass) (ClassRoom, error) {
	var out ClassRoom
	err := s.commit(ctx, func(snap *Snapshot) error {
		if _, ok := snap.SchoolByID(schoolID); !ok {
			return ErrSchoolNotFound
		}
		out = MakeClassRoom(schoolID, nc)
		snap.Classes = append(snap.Classes, out)
		return nil
	})
	return out, err
}

// Class returns a deep copy of the class.
func (s *Session) Class(id string) (ClassRoom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.snap.ClassByID(id)
	if !ok {
		return ClassRoom{}, ErrClassNotFound
	}
	return c.Clone(), nil
}

func (s *Session) ArchiveClass(ctx context.Context, id string) (ClassRoom, error) {
	return s.updateClass(ctx, id, func(c *ClassRoom) error { c.Archive(); return nil })
}

func (s *Session) RestoreClass(ctx context.Context, id string) (ClassRoom, error) {
	return s.updateClass(ctx, id, func(c *ClassRoom) error { c.Restore(); return nil })
}

func (s *Session) DeleteClass(ctx context.Context, id string) error {
	return s.commit(ctx, func(snap *Snapshot) error {
		if !snap.RemoveClass(id) {
			return ErrClassNotFound
		}
		return nil
	})
}

// AddStudents imports students from free text; the batch is
// all-or-nothing.
func (s *Session) AddStudents(ctx context.Context, classID string, bs BulkStudents) ([]Student, error) {
	names := bs.Parse()
	if len(names) == 0 {
		return nil, core.NewValidationError(errors.New("no student names provided"),
			core.FieldError{Field: "names", Error: "no student names provided"})
	}
	var added []Student
	_, err := s.updateClass(ctx, classID, func(c *ClassRoom) error {
		added = c.AddStudents(names)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

func (s *Session) AddActivityColumn(ctx context.Context, classID string) (ClassRoom, error) {
	return s.updateClass(ctx, classID, func(c *ClassRoom) error {
		c.AddActivityColumn()
		return nil
	})
}

func (s *Session) UpdateActivityMeta(ctx context.Context, classID string, b Bimester, idx int, meta ActivityMeta) (ClassRoom, error) {
	return s.updateClass(ctx, classID, func(c *ClassRoom) error {
		c.SetActivityMeta(b, idx, meta)
		return nil
	})
}

func (s *Session) SetActivityScore(ctx context.Context, classID, studentID string, b Bimester, idx int, score null.Float64) (ClassRoom, error) {
	return s.updateClass(ctx, classID, func(c *ClassRoom) error {
		return c.SetActivityScore(studentID, b, idx, score)
	})
}

func (s *Session) SetExam(ctx context.Context, classID, studentID string, b Bimester, score null.Float64) (ClassRoom, error) {
	return s.updateClass(ctx, classID, func(c *ClassRoom) error {
		return c.SetExam(studentID, b, score)
	})
}

func (s *Session) SetExtra(ctx context.Context, classID, studentID string, b Bimester, score null.Float64) (ClassRoom, error) {
	return s.updateClass(ctx, classID, func(c *ClassRoom) error {
		return c.SetExtra(studentID, b, score)
	})
}

func (s *Session) SetRecovery(ctx context.Context, classID, studentID string, b Bimester, score null.Float64) (ClassRoom, error) {
	return s.updateClass(ctx, classID, func(c *ClassRoom) error {
		return c.SetRecovery(studentID, b, score)
	})
}

func (s *Session) SetFinalExam(ctx context.Context, classID, studentID string, score null.Float64) (ClassRoom, error) {
	return s.updateClass(ctx, classID, func(c *ClassRoom) error {
		return c.SetFinalExam(studentID, score)
	})
}

func (s *Session) DeleteStudent(ctx context.Context, classID, studentID string) error {
	_, err := s.updateClass(ctx, classID, func(c *ClassRoom) error {
		if !c.RemoveStudent(studentID) {
			return ErrStudentNotFound
		}
		return nil
	})
	return err
}

func (s *Session) updateClass(ctx context.Context, classID string, update func(*ClassRoom) error) (ClassRoom, error) {
	var out ClassRoom
	err := s.commit(ctx, func(snap *Snapshot) error {
		c, ok := snap.ClassByID(classID)
		if !ok {
			return ErrClassNotFound
		}
		if err := update(c); err != nil {
			return err
		}
		out = c.Clone()
		return nil
	})
	return out, err
}
