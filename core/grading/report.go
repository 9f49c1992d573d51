package grading

import (
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edugrade/core/school"
)

// ReportRow consolidates one student's year for the annual view.
type ReportRow struct {
	StudentID   string                 `json:"student_id"`
	StudentName string                 `json:"student_name"`
	Effective   [BimesterCount]float64 `json:"effective"`
	Rec1        null.Float64           `json:"rec1"`
	Rec2        null.Float64           `json:"rec2"`
	FinalExam   null.Float64           `json:"final_exam"`
	Outcome     Outcome                `json:"outcome"`
}

// Report computes the annual report for every student in the class,
// in the class's student order.
func Report(class school.ClassRoom) []ReportRow {
	rows := make([]ReportRow, 0, len(class.Students))
	for _, st := range class.Students {
		row := ReportRow{
			StudentID:   st.ID,
			StudentName: st.Name,
			Rec1:        st.Rec1,
			Rec2:        st.Rec2,
			FinalExam:   st.FinalExam,
			Outcome:     Annual(st),
		}
		for i, b := range school.Bimesters {
			row.Effective[i] = EffectiveBimesterGrade(st, b)
		}
		rows = append(rows, row)
	}
	return rows
}
