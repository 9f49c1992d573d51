package inmemdb

import (
	"context"

	"github.com/trezcool/edugrade/core/school"
)

type schoolRepository struct {
	db *DB
}

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) UpsertSchools(_ context.Context, ownerID string, schools []school.School) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	table := repo.db.schools[ownerID]
	if table == nil {
		table = make(map[string]school.School, len(schools))
		repo.db.schools[ownerID] = table
	}
	for _, sc := range schools {
		table[sc.ID] = sc
	}
	return nil
}

func (repo *schoolRepository) UpsertClasses(_ context.Context, ownerID string, classes []school.ClassRecord) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	table := repo.db.classes[ownerID]
	if table == nil {
		table = make(map[string]school.ClassRecord, len(classes))
		repo.db.classes[ownerID] = table
	}
	for _, c := range classes {
		table[c.ID] = c
	}
	return nil
}

func (repo *schoolRepository) UpsertStudents(_ context.Context, ownerID string, students []school.StudentRecord) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	table := repo.db.students[ownerID]
	if table == nil {
		table = make(map[string]school.StudentRecord, len(students))
		repo.db.students[ownerID] = table
	}
	for _, st := range students {
		table[st.ID] = st
	}
	return nil
}

func (repo *schoolRepository) PruneSchools(_ context.Context, ownerID string, keepIDs []string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	prune(repo.db.schools[ownerID], keepIDs)
	return nil
}

func (repo *schoolRepository) PruneClasses(_ context.Context, ownerID string, keepIDs []string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	prune(repo.db.classes[ownerID], keepIDs)
	return nil
}

func (repo *schoolRepository) PruneStudents(_ context.Context, ownerID string, keepIDs []string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	prune(repo.db.students[ownerID], keepIDs)
	return nil
}

func (repo *schoolRepository) FetchSchools(_ context.Context, ownerID string) ([]school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	table := repo.db.schools[ownerID]
	schools := make([]school.School, 0, len(table))
	for _, sc := range table {
		schools = append(schools, sc)
	}
	return schools, nil
}

func (repo *schoolRepository) FetchClasses(_ context.Context, ownerID string) ([]school.ClassRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	table := repo.db.classes[ownerID]
	classes := make([]school.ClassRecord, 0, len(table))
	for _, c := range table {
		classes = append(classes, c)
	}
	return classes, nil
}

func (repo *schoolRepository) FetchStudents(_ context.Context, ownerID string) ([]school.StudentRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	table := repo.db.students[ownerID]
	students := make([]school.StudentRecord, 0, len(table))
	for _, st := range table {
		students = append(students, st)
	}
	return students, nil
}

func prune[T any](table map[string]T, keepIDs []string) {
	if table == nil {
		return
	}
	keep := make(map[string]struct{}, len(keepIDs))
	for _, id := range keepIDs {
		keep[id] = struct{}{}
	}
	for id := range table {
		if _, ok := keep[id]; !ok {
			delete(table, id)
		}
	}
}
