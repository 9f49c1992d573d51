package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edugrade/core/school"
)

func scores(vals ...float64) []null.Float64 {
	s := make([]null.Float64, len(vals))
	for i, v := range vals {
		s[i] = null.Float64From(v)
	}
	return s
}

func studentWithAverages(avgs [4]float64) school.Student {
	st := school.MakeStudent("Test Student", school.DefaultActivityCount)
	for i, b := range school.Bimesters {
		// one activity + matching exam yields exactly the wanted average
		st.Bimesters[b] = school.GradePeriod{
			Activities: scores(avgs[i]),
			Exam:       null.Float64From(avgs[i]),
		}
	}
	return st
}

func TestBimesterAverage(t *testing.T) {
	tests := []struct {
		name   string
		period school.GradePeriod
		want   float64
	}{
		{"empty period", school.GradePeriod{Activities: make([]null.Float64, 3)}, 0},
		{"activities only", school.GradePeriod{Activities: scores(8, 6)}, 3.5},
		{"activities and exam", school.GradePeriod{
			Activities: scores(8, 6),
			Exam:       null.Float64From(5),
		}, 6},
		{"ungraded activities excluded not zeroed", school.GradePeriod{
			Activities: []null.Float64{null.Float64From(10), {}, {}},
			Exam:       null.Float64From(10),
		}, 10},
		{"extra added after halving", school.GradePeriod{
			Activities: scores(6),
			Exam:       null.Float64From(6),
			Extra:      null.Float64From(1.5),
		}, 7.5},
		{"extra can exceed scale", school.GradePeriod{
			Activities: scores(10),
			Exam:       null.Float64From(10),
			Extra:      null.Float64From(2),
		}, 12},
		{"exam without activities", school.GradePeriod{
			Activities: make([]null.Float64, 3),
			Exam:       null.Float64From(8),
		}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, BimesterAverage(tt.period), 1e-9)
		})
	}
}

func TestBimesterAverageOrderInvariant(t *testing.T) {
	a := school.GradePeriod{Activities: scores(3, 7, 9)}
	b := school.GradePeriod{Activities: scores(9, 3, 7)}
	assert.Equal(t, BimesterAverage(a), BimesterAverage(b))
}

func TestEffectiveBimesterGrade(t *testing.T) {
	tests := []struct {
		name string
		avgs [4]float64
		rec1 null.Float64
		rec2 null.Float64
		want [4]float64
	}{
		{
			name: "no recovery leaves raw averages",
			avgs: [4]float64{3, 5, 6, 8},
			want: [4]float64{3, 5, 6, 8},
		},
		{
			name: "rec1 replaces the worse of the first pair",
			avgs: [4]float64{3, 5, 7, 7},
			rec1: null.Float64From(6),
			want: [4]float64{6, 5, 7, 7},
		},
		{
			name: "rec1 replaces second bimester when strictly worse",
			avgs: [4]float64{5, 3, 7, 7},
			rec1: null.Float64From(6),
			want: [4]float64{5, 6, 7, 7},
		},
		{
			name: "tie goes to the first bimester only",
			avgs: [4]float64{4, 4, 7, 7},
			rec1: null.Float64From(6),
			want: [4]float64{6, 4, 7, 7},
		},
		{
			name: "recovery below both averages changes nothing",
			avgs: [4]float64{5, 6, 7, 7},
			rec1: null.Float64From(4),
			want: [4]float64{5, 6, 7, 7},
		},
		{
			name: "rec2 only affects the second pair",
			avgs: [4]float64{2, 2, 3, 8},
			rec2: null.Float64From(7),
			want: [4]float64{2, 2, 7, 8},
		},
		{
			name: "both recoveries apply independently",
			avgs: [4]float64{3, 8, 9, 4},
			rec1: null.Float64From(5),
			rec2: null.Float64From(6),
			want: [4]float64{5, 8, 9, 6},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := studentWithAverages(tt.avgs)
			st.Rec1 = tt.rec1
			st.Rec2 = tt.rec2
			for i, b := range school.Bimesters {
				assert.InDelta(t, tt.want[i], EffectiveBimesterGrade(st, b), 1e-9, "bimester %d", b)
			}
		})
	}
}

func TestAnnual(t *testing.T) {
	t.Run("sum at threshold passes without final exam", func(t *testing.T) {
		out := Annual(studentWithAverages([4]float64{7, 7, 7, 7}))
		assert.InDelta(t, 28, out.Sum, 1e-9)
		assert.False(t, out.FinalExamRequired)
		assert.InDelta(t, 7, out.FinalGrade, 1e-9)
		assert.True(t, out.Approved)
	})

	t.Run("sum just below threshold requires final exam", func(t *testing.T) {
		out := Annual(studentWithAverages([4]float64{7, 7, 7, 6.9}))
		assert.InDelta(t, 27.9, out.Sum, 1e-9)
		assert.True(t, out.FinalExamRequired)
	})

	t.Run("final exam averaged against annual average", func(t *testing.T) {
		st := studentWithAverages([4]float64{6, 6, 6, 6})
		st.FinalExam = null.Float64From(6)
		out := Annual(st)
		assert.True(t, out.FinalExamRequired)
		assert.InDelta(t, 6, out.FinalGrade, 1e-9)
		assert.True(t, out.Approved)
	})

	t.Run("missing final exam counts as zero", func(t *testing.T) {
		out := Annual(studentWithAverages([4]float64{6, 6, 6, 6}))
		assert.True(t, out.FinalExamRequired)
		assert.InDelta(t, 3, out.FinalGrade, 1e-9)
		assert.False(t, out.Approved)
	})

	t.Run("final grade below mark is not approved", func(t *testing.T) {
		st := studentWithAverages([4]float64{5, 5, 5, 5})
		st.FinalExam = null.Float64From(4.998)
		out := Annual(st)
		assert.InDelta(t, 4.999, out.FinalGrade, 1e-9)
		assert.False(t, out.Approved)
	})

	t.Run("recovery feeds into the annual outcome", func(t *testing.T) {
		st := studentWithAverages([4]float64{4, 8, 8, 8})
		st.Rec1 = null.Float64From(8)
		out := Annual(st)
		assert.InDelta(t, 32, out.Sum, 1e-9)
		assert.False(t, out.FinalExamRequired)
		assert.True(t, out.Approved)
	})
}

func TestParseTab(t *testing.T) {
	for _, s := range []string{"1", "2", "3", "4", "annual"} {
		tab, err := ParseTab(s)
		assert.NoError(t, err)
		assert.Equal(t, Tab(s), tab)
	}

	_, err := ParseTab("5")
	assert.ErrorIs(t, err, ErrInvalidTab)
	_, err = ParseTab("")
	assert.ErrorIs(t, err, ErrInvalidTab)

	b, ok := TabBimester3.Bimester()
	assert.True(t, ok)
	assert.Equal(t, school.Bimester3, b)
	_, ok = TabAnnual.Bimester()
	assert.False(t, ok)
}

func TestReport(t *testing.T) {
	class := school.MakeClassRoom("sch1", school.NewClass{Name: "6A", Subject: "Math", Year: "2026"})
	class.AddStudents([]string{"Alice", "Bob"})
	st := &class.Students[0]
	for _, b := range school.Bimesters {
		p := st.Bimesters[b]
		p.Activities = scores(8, 8, 8)
		p.Exam = null.Float64From(8)
		st.Bimesters[b] = p
	}

	rows := Report(class)
	assert.Len(t, rows, 2)
	assert.Equal(t, "Alice", rows[0].StudentName)
	assert.InDelta(t, 8, rows[0].Effective[0], 1e-9)
	assert.True(t, rows[0].Outcome.Approved)
	// Bob has no grades at all; everything degrades to zero.
	assert.Equal(t, "Bob", rows[1].StudentName)
	assert.True(t, rows[1].Outcome.FinalExamRequired)
	assert.False(t, rows[1].Outcome.Approved)
}
