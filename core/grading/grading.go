// Package grading implements the fixed academic grading policy: bimester
// averages, recovery-exam overrides and the annual pass/fail outcome.
// Everything here is pure; no I/O.
package grading

import (
	"github.com/trezcool/edugrade/core/school"
)

// Institutional grading policy. These encode school regulation, not
// implementation detail; change them only when the regulation changes.
const (
	// BimesterCount is the number of grading periods in the year.
	BimesterCount = 4
	// PassingAverage is the annual average at or above which the student
	// passes without a final exam.
	PassingAverage = 7.0
	// PassingSum is the equivalent threshold on the four-bimester sum.
	PassingSum = PassingAverage * BimesterCount
	// ExamWeightDivisor halves the activity average against the exam, and
	// the annual average against the final exam.
	ExamWeightDivisor = 2.0
	// FinalPassMark is the minimum final grade for approval.
	FinalPassMark = 5.0
)

// BimesterAverage reduces one grade period to its raw average:
// mean of the graded activities (ungraded ones are excluded, not zero),
// halved against the exam, plus the uncapped extra bonus.
// Total function: empty activities and null exam degrade to 0.
func BimesterAverage(p school.GradePeriod) float64 {
	var sum float64
	var n int
	for _, a := range p.Activities {
		if a.Valid {
			sum += a.Float64
			n++
		}
	}
	var activityAvg float64
	if n > 0 {
		activityAvg = sum / float64(n)
	}
	return ((activityAvg + p.Exam.Float64) / ExamWeightDivisor) + p.Extra.Float64
}

// EffectiveBimesterGrade applies the paired recovery override to the raw
// bimester average. Bimesters {1,2} share rec1 and {3,4} share rec2; the
// recovery score replaces the worse average of the pair when it improves
// it. On a tie the first bimester of the pair takes the override (<= for
// the first, strict < for the second) so both can never claim it at once.
func EffectiveBimesterGrade(st school.Student, b school.Bimester) float64 {
	raw := BimesterAverage(st.Bimesters[b])

	first, second := b.RecoveryPair()
	rec := st.Rec1
	if first == school.Bimester3 {
		rec = st.Rec2
	}
	if !rec.Valid {
		return raw
	}

	firstAvg := BimesterAverage(st.Bimesters[first])
	secondAvg := BimesterAverage(st.Bimesters[second])
	switch b {
	case first:
		if raw < rec.Float64 && firstAvg <= secondAvg {
			return rec.Float64
		}
	case second:
		if raw < rec.Float64 && secondAvg < firstAvg {
			return rec.Float64
		}
	}
	return raw
}

// Outcome is a student's annual consolidation.
type Outcome struct {
	Sum               float64 `json:"sum"`
	Average           float64 `json:"average"`
	FinalExamRequired bool    `json:"final_exam_required"`
	FinalGrade        float64 `json:"final_grade"`
	Approved          bool    `json:"approved"`
}

// Annual rolls the four effective bimester grades into the yearly
// outcome. A final exam is required below the passing average; when
// required but not yet taken, it counts as zero.
func Annual(st school.Student) Outcome {
	var sum float64
	for _, b := range school.Bimesters {
		sum += EffectiveBimesterGrade(st, b)
	}
	avg := sum / BimesterCount

	out := Outcome{
		Sum:               sum,
		Average:           avg,
		FinalExamRequired: avg < PassingAverage,
		FinalGrade:        avg,
	}
	if out.FinalExamRequired {
		out.FinalGrade = (avg + st.FinalExam.Float64) / ExamWeightDivisor
	}
	out.Approved = out.FinalGrade >= FinalPassMark
	return out
}
