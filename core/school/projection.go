package school

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// The remote store keeps three flat collections per owner: schools,
// classes and students. A student's grade data travels as one opaque
// structured value and is never decomposed further.

type (
	ClassRecord struct {
		ID               string                      `json:"id"`
		SchoolID         string                      `json:"school_id"`
		Name             string                      `json:"name"`
		Subject          string                      `json:"subject"`
		Year             string                      `json:"year"`
		ActivityCount    int                         `json:"activity_count"`
		Status           ClassStatus                 `json:"status"`
		ActivityMetadata map[Bimester][]ActivityMeta `json:"activity_metadata"`
		LastModified     time.Time                   `json:"last_modified"`
	}

	// GradeSheet is the opaque per-student grade payload.
	GradeSheet struct {
		Bimesters map[Bimester]GradePeriod `json:"bimesters"`
		Rec1      null.Float64             `json:"rec1"`
		Rec2      null.Float64             `json:"rec2"`
		FinalExam null.Float64             `json:"final_exam"`
	}

	StudentRecord struct {
		ID      string     `json:"id"`
		ClassID string     `json:"class_id"`
		Name    string     `json:"name"`
		Grades  GradeSheet `json:"grades"`
	}
)

// Decompose flattens the nested snapshot into the three upload collections.
func Decompose(snap Snapshot) ([]School, []ClassRecord, []StudentRecord) {
	schools := make([]School, len(snap.Schools))
	copy(schools, snap.Schools)

	classes := make([]ClassRecord, 0, len(snap.Classes))
	var students []StudentRecord
	for _, c := range snap.Classes {
		classes = append(classes, ClassRecord{
			ID:               c.ID,
			SchoolID:         c.SchoolID,
			Name:             c.Name,
			Subject:          c.Subject,
			Year:             c.Year,
			ActivityCount:    c.ActivityCount,
			Status:           c.Status,
			ActivityMetadata: c.ActivityMetadata,
			LastModified:     c.LastModified,
		})
		for _, st := range c.Students {
			students = append(students, StudentRecord{
				ID:      st.ID,
				ClassID: c.ID,
				Name:    st.Name,
				Grades: GradeSheet{
					Bimesters: st.Bimesters,
					Rec1:      st.Rec1,
					Rec2:      st.Rec2,
					FinalExam: st.FinalExam,
				},
			})
		}
	}
	return schools, classes, students
}

// Reconstitute joins the three fetched collections back into a nested
// snapshot. Classes or schools with no matching children simply get
// empty lists; students whose parent class is gone are dropped.
func Reconstitute(schools []School, classes []ClassRecord, students []StudentRecord) Snapshot {
	byClass := make(map[string][]Student, len(classes))
	for _, sr := range students {
		byClass[sr.ClassID] = append(byClass[sr.ClassID], Student{
			ID:        sr.ID,
			Name:      sr.Name,
			Bimesters: sr.Grades.Bimesters,
			Rec1:      sr.Grades.Rec1,
			Rec2:      sr.Grades.Rec2,
			FinalExam: sr.Grades.FinalExam,
		})
	}

	snap := Snapshot{
		Schools: make([]School, len(schools)),
		Classes: make([]ClassRoom, 0, len(classes)),
	}
	copy(snap.Schools, schools)
	for _, cr := range classes {
		sts := byClass[cr.ID]
		if sts == nil {
			sts = []Student{}
		}
		snap.Classes = append(snap.Classes, ClassRoom{
			ID:               cr.ID,
			SchoolID:         cr.SchoolID,
			Name:             cr.Name,
			Subject:          cr.Subject,
			Year:             cr.Year,
			ActivityCount:    cr.ActivityCount,
			Status:           cr.Status,
			ActivityMetadata: cr.ActivityMetadata,
			Students:         sts,
			LastModified:     cr.LastModified,
		})
	}
	return snap
}
