package sqlxrepos

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/edugrade/core/school"
)

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *sqlx.DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) UpsertSchools(ctx context.Context, ownerID string, schools []school.School) error {
	if len(schools) == 0 {
		return nil
	}
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO school (id, owner_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`)
	if err != nil {
		return errors.Wrap(err, "preparing school upsert")
	}
	defer func() { _ = stmt.Close() }()

	for _, sc := range schools {
		if _, err = stmt.ExecContext(ctx, sc.ID, ownerID, sc.Name); err != nil {
			return errors.Wrap(err, "upserting school")
		}
	}
	return errors.Wrap(tx.Commit(), "committing school upsert")
}

func (repo *schoolRepository) UpsertClasses(ctx context.Context, ownerID string, classes []school.ClassRecord) error {
	if len(classes) == 0 {
		return nil
	}
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO class (id, owner_id, school_id, name, subject, year, activity_count, status, activity_metadata, last_modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			school_id         = EXCLUDED.school_id,
			name              = EXCLUDED.name,
			subject           = EXCLUDED.subject,
			year              = EXCLUDED.year,
			activity_count    = EXCLUDED.activity_count,
			status            = EXCLUDED.status,
			activity_metadata = EXCLUDED.activity_metadata,
			last_modified     = EXCLUDED.last_modified`)
	if err != nil {
		return errors.Wrap(err, "preparing class upsert")
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range classes {
		meta, err := json.Marshal(c.ActivityMetadata)
		if err != nil {
			return errors.Wrap(err, "encoding activity metadata")
		}
		_, err = stmt.ExecContext(ctx,
			c.ID, ownerID, c.SchoolID, c.Name, c.Subject, c.Year,
			c.ActivityCount, c.Status, meta, c.LastModified,
		)
		if err != nil {
			return errors.Wrap(err, "upserting class")
		}
	}
	return errors.Wrap(tx.Commit(), "committing class upsert")
}

func (repo *schoolRepository) UpsertStudents(ctx context.Context, ownerID string, students []school.StudentRecord) error {
	if len(students) == 0 {
		return nil
	}
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO student (id, owner_id, class_id, name, grades)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			class_id = EXCLUDED.class_id,
			name     = EXCLUDED.name,
			grades   = EXCLUDED.grades`)
	if err != nil {
		return errors.Wrap(err, "preparing student upsert")
	}
	defer func() { _ = stmt.Close() }()

	for _, st := range students {
		grades, err := json.Marshal(st.Grades)
		if err != nil {
			return errors.Wrap(err, "encoding grades")
		}
		if _, err = stmt.ExecContext(ctx, st.ID, ownerID, st.ClassID, st.Name, grades); err != nil {
			return errors.Wrap(err, "upserting student")
		}
	}
	return errors.Wrap(tx.Commit(), "committing student upsert")
}

func (repo *schoolRepository) PruneSchools(ctx context.Context, ownerID string, keepIDs []string) error {
	return repo.prune(ctx, "school", ownerID, keepIDs)
}

func (repo *schoolRepository) PruneClasses(ctx context.Context, ownerID string, keepIDs []string) error {
	return repo.prune(ctx, "class", ownerID, keepIDs)
}

func (repo *schoolRepository) PruneStudents(ctx context.Context, ownerID string, keepIDs []string) error {
	return repo.prune(ctx, "student", ownerID, keepIDs)
}

func (repo *schoolRepository) prune(ctx context.Context, table, ownerID string, keepIDs []string) error {
	q := `DELETE FROM ` + table + ` WHERE owner_id = $1 AND id <> ALL($2)`
	if _, err := repo.db.ExecContext(ctx, q, ownerID, pq.Array(keepIDs)); err != nil {
		return errors.Wrapf(err, "pruning %s", table)
	}
	return nil
}

func (repo *schoolRepository) FetchSchools(ctx context.Context, ownerID string) ([]school.School, error) {
	rows, err := repo.db.QueryxContext(ctx, `SELECT id, name FROM school WHERE owner_id = $1 ORDER BY name, id`, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "fetching schools")
	}
	defer func() { _ = rows.Close() }()

	schools := make([]school.School, 0)
	for rows.Next() {
		var sc school.School
		if err = rows.Scan(&sc.ID, &sc.Name); err != nil {
			return nil, errors.Wrap(err, "scanning school")
		}
		schools = append(schools, sc)
	}
	return schools, errors.Wrap(rows.Err(), "fetching schools")
}

func (repo *schoolRepository) FetchClasses(ctx context.Context, ownerID string) ([]school.ClassRecord, error) {
	rows, err := repo.db.QueryxContext(ctx, `
		SELECT id, school_id, name, subject, year, activity_count, status, activity_metadata, last_modified
		FROM class WHERE owner_id = $1 ORDER BY last_modified DESC, id`, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "fetching classes")
	}
	defer func() { _ = rows.Close() }()

	classes := make([]school.ClassRecord, 0)
	for rows.Next() {
		var (
			c    school.ClassRecord
			meta []byte
		)
		err = rows.Scan(&c.ID, &c.SchoolID, &c.Name, &c.Subject, &c.Year,
			&c.ActivityCount, &c.Status, &meta, &c.LastModified)
		if err != nil {
			return nil, errors.Wrap(err, "scanning class")
		}
		if err = json.Unmarshal(meta, &c.ActivityMetadata); err != nil {
			return nil, errors.Wrap(err, "decoding activity metadata")
		}
		classes = append(classes, c)
	}
	return classes, errors.Wrap(rows.Err(), "fetching classes")
}

func (repo *schoolRepository) FetchStudents(ctx context.Context, ownerID string) ([]school.StudentRecord, error) {
	rows, err := repo.db.QueryxContext(ctx, `
		SELECT id, class_id, name, grades FROM student WHERE owner_id = $1 ORDER BY class_id, name, id`, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "fetching students")
	}
	defer func() { _ = rows.Close() }()

	students := make([]school.StudentRecord, 0)
	for rows.Next() {
		var (
			st     school.StudentRecord
			grades []byte
		)
		if err = rows.Scan(&st.ID, &st.ClassID, &st.Name, &grades); err != nil {
			return nil, errors.Wrap(err, "scanning student")
		}
		if err = json.Unmarshal(grades, &st.Grades); err != nil {
			return nil, errors.Wrap(err, "decoding grades")
		}
		students = append(students, st)
	}
	return students, errors.Wrap(rows.Err(), "fetching students")
}
