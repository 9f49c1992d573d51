package school

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

func TestDecomposeReconstituteRoundTrip(t *testing.T) {
	sc := MakeSchool(NewSchool{Name: "Eastside"})
	c1 := MakeClassRoom(sc.ID, NewClass{Name: "6A", Subject: "Math", Year: "2026"})
	c1.AddStudents([]string{"Alice", "Bob"})
	require.NoError(t, c1.SetActivityScore(c1.Students[0].ID, Bimester1, 1, null.Float64From(8)))
	require.NoError(t, c1.SetRecovery(c1.Students[0].ID, Bimester1, null.Float64From(6)))
	c2 := MakeClassRoom(sc.ID, NewClass{Name: "7B", Subject: "Science", Year: "2026"})
	snap := Snapshot{Schools: []School{sc}, Classes: []ClassRoom{c1, c2}}

	schools, classes, students := Decompose(snap)
	assert.Len(t, schools, 1)
	assert.Len(t, classes, 2)
	require.Len(t, students, 2)
	for _, st := range students {
		assert.Equal(t, c1.ID, st.ClassID)
	}
	assert.Equal(t, null.Float64From(6), students[0].Grades.Rec1)

	got := Reconstitute(schools, classes, students)
	assert.Equal(t, snap.Schools, got.Schools)
	require.Len(t, got.Classes, 2)

	gotC1, ok := got.ClassByID(c1.ID)
	require.True(t, ok)
	assert.Equal(t, c1.ActivityCount, gotC1.ActivityCount)
	assert.Equal(t, c1.ActivityMetadata, gotC1.ActivityMetadata)
	require.Len(t, gotC1.Students, 2)
	assert.Equal(t, c1.Students[0].Bimesters, gotC1.Students[0].Bimesters)
	require.NoError(t, gotC1.CheckShape())

	// the student-less class comes back with an empty, non-nil list
	gotC2, ok := got.ClassByID(c2.ID)
	require.True(t, ok)
	assert.NotNil(t, gotC2.Students)
	assert.Empty(t, gotC2.Students)
}

func TestReconstituteDropsOrphanStudents(t *testing.T) {
	sc := MakeSchool(NewSchool{Name: "Eastside"})
	c := MakeClassRoom(sc.ID, NewClass{Name: "6A", Subject: "Math", Year: "2026"})
	c.AddStudents([]string{"Alice"})
	snap := Snapshot{Schools: []School{sc}, Classes: []ClassRoom{c}}

	schools, classes, students := Decompose(snap)
	students = append(students, StudentRecord{ID: "orphan", ClassID: "gone", Name: "Ghost"})

	got := Reconstitute(schools, classes, students)
	require.Len(t, got.Classes, 1)
	assert.Len(t, got.Classes[0].Students, 1)
}
