package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	echoapi "github.com/trezcool/edugrade/apps/api/echo"
	"github.com/trezcool/edugrade/core/grading"
	"github.com/trezcool/edugrade/core/school"
)

func fPtr(f float64) *float64 { return &f }
func iPtr(i int) *int         { return &i }

func serve(t *testing.T, method, path, token string, body []byte, wantCode int) *json.Decoder {
	t.Helper()
	req, rec := newAuthRequest(method, path, token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != wantCode {
		t.Fatalf("%s %s: code = %v; wantCode %v; body %v", method, path, rec.Code, wantCode, rec.Body.String())
	}
	return json.NewDecoder(rec.Body)
}

func decode(t *testing.T, dec *json.Decoder, v interface{}) {
	t.Helper()
	if err := dec.Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func createClass(t *testing.T, token, schoolID, name string) school.ClassRoom {
	t.Helper()
	var class school.ClassRoom
	body := marchallObj(t, school.NewClass{Name: name, Subject: "Mathematics", Year: "2026"})
	dec := serve(t, http.MethodPost, "/v1/schools/"+schoolID+"/classes", token, body, http.StatusCreated)
	decode(t, dec, &class)
	return class
}

func Test_gradebookApi_schools(t *testing.T) {
	usr := createUser(t, "Schoolmaster", "schools@test.cd", "PassW0rd!")
	seed := openSession(t, usr)
	token := getToken(t, usr)

	t.Run("Auth required", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodGet, path: "/v1/gradebook",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		}
		req, rec := newRequest(tt.method, tt.path)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Snapshot holds the fetched school", func(t *testing.T) {
		var snap school.Snapshot
		dec := serve(t, http.MethodGet, "/v1/gradebook", token, nil, http.StatusOK)
		decode(t, dec, &snap)
		if _, ok := snap.SchoolByID(seed.ID); !ok {
			t.Errorf("school %v missing from snapshot %+v", seed.ID, snap)
		}
	})

	t.Run("Name required", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPost, path: "/v1/schools", token: token, body: marchallObj(t, school.NewSchool{}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"name": "this field is required"}),
		}
		req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	var created school.School
	t.Run("Create", func(t *testing.T) {
		dec := serve(t, http.MethodPost, "/v1/schools", token, marchallObj(t, school.NewSchool{Name: "  St. Mary  "}), http.StatusCreated)
		decode(t, dec, &created)
		if created.ID == "" || created.Name != "St. Mary" {
			t.Errorf("unexpected school %+v", created)
		}
	})

	t.Run("Rename", func(t *testing.T) {
		var renamed school.School
		dec := serve(t, http.MethodPut, "/v1/schools/"+created.ID, token, marchallObj(t, school.NewSchool{Name: "St. Joseph"}), http.StatusOK)
		decode(t, dec, &renamed)
		if renamed.ID != created.ID || renamed.Name != "St. Joseph" {
			t.Errorf("unexpected school %+v", renamed)
		}
	})

	t.Run("Rename unknown", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPut, path: "/v1/schools/nope", token: token, body: marchallObj(t, school.NewSchool{Name: "Ghost"}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		}
		req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Delete", func(t *testing.T) {
		serve(t, http.MethodDelete, "/v1/schools/"+created.ID, token, nil, http.StatusNoContent)
		serve(t, http.MethodDelete, "/v1/schools/"+created.ID, token, nil, http.StatusNotFound)
	})
}

func Test_gradebookApi_classes(t *testing.T) {
	usr := createUser(t, "Classmaster", "classes@test.cd", "PassW0rd!")
	seed := openSession(t, usr)
	token := getToken(t, usr)

	var class school.ClassRoom
	t.Run("Create", func(t *testing.T) {
		class = createClass(t, token, seed.ID, "6th Grade A")
		if class.SchoolID != seed.ID || class.Status != school.StatusActive || class.ActivityCount != school.DefaultActivityCount {
			t.Errorf("unexpected class %+v", class)
		}
	})

	t.Run("Create under unknown school", func(t *testing.T) {
		body := marchallObj(t, school.NewClass{Name: "Nope", Subject: "History", Year: "2026"})
		serve(t, http.MethodPost, "/v1/schools/nope/classes", token, body, http.StatusNotFound)
	})

	t.Run("Required fields", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPost, path: "/v1/schools/" + seed.ID + "/classes", token: token, body: marchallObj(t, school.NewClass{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name":    "this field is required",
				"subject": "this field is required",
				"year":    "this field is required",
			}),
		}
		req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Retrieve", func(t *testing.T) {
		var got school.ClassRoom
		dec := serve(t, http.MethodGet, "/v1/classes/"+class.ID, token, nil, http.StatusOK)
		decode(t, dec, &got)
		if got.ID != class.ID || got.Name != class.Name {
			t.Errorf("unexpected class %+v", got)
		}
	})

	t.Run("Retrieve with tab", func(t *testing.T) {
		serve(t, http.MethodGet, "/v1/classes/"+class.ID+"?tab=annual", token, nil, http.StatusOK)
		serve(t, http.MethodGet, "/v1/classes/"+class.ID+"?tab=5", token, nil, http.StatusBadRequest)
	})

	t.Run("Archived classes are hidden by default", func(t *testing.T) {
		archived := createClass(t, token, seed.ID, "Old Timers")
		serve(t, http.MethodPost, "/v1/classes/"+archived.ID+"/archive", token, nil, http.StatusOK)

		var classes []school.ClassRoom
		dec := serve(t, http.MethodGet, "/v1/schools/"+seed.ID+"/classes", token, nil, http.StatusOK)
		decode(t, dec, &classes)
		for _, c := range classes {
			if c.ID == archived.ID {
				t.Error("archived class leaked into the default listing")
			}
		}

		dec = serve(t, http.MethodGet, "/v1/schools/"+seed.ID+"/classes?status=archived", token, nil, http.StatusOK)
		decode(t, dec, &classes)
		if len(classes) != 1 || classes[0].ID != archived.ID {
			t.Errorf("unexpected archived listing %+v", classes)
		}

		dec = serve(t, http.MethodGet, "/v1/schools/"+seed.ID+"/classes?status=all", token, nil, http.StatusOK)
		decode(t, dec, &classes)
		if len(classes) != 2 {
			t.Errorf("status=all: got %d classes; want 2", len(classes))
		}

		serve(t, http.MethodGet, "/v1/schools/"+seed.ID+"/classes?status=lol", token, nil, http.StatusBadRequest)

		// restoring puts it back in the default listing, grades intact
		var restored school.ClassRoom
		dec = serve(t, http.MethodPost, "/v1/classes/"+archived.ID+"/restore", token, nil, http.StatusOK)
		decode(t, dec, &restored)
		if restored.Status != school.StatusActive {
			t.Errorf("restored class status = %v", restored.Status)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		serve(t, http.MethodDelete, "/v1/classes/"+class.ID, token, nil, http.StatusNoContent)
		serve(t, http.MethodGet, "/v1/classes/"+class.ID, token, nil, http.StatusNotFound)
	})
}

func Test_gradebookApi_grades(t *testing.T) {
	usr := createUser(t, "Grader", "grades@test.cd", "PassW0rd!")
	seed := openSession(t, usr)
	token := getToken(t, usr)
	class := createClass(t, token, seed.ID, "7th Grade B")

	var students []school.Student
	t.Run("Bulk add students", func(t *testing.T) {
		body := marchallObj(t, school.BulkStudents{Names: "Alice Mwamba\n\n   Bob Ilunga  \n"})
		dec := serve(t, http.MethodPost, "/v1/classes/"+class.ID+"/students", token, body, http.StatusCreated)
		decode(t, dec, &students)
		if len(students) != 2 || students[0].Name != "Alice Mwamba" || students[1].Name != "Bob Ilunga" {
			t.Fatalf("unexpected students %+v", students)
		}
	})

	t.Run("Blank import rejected", func(t *testing.T) {
		body := marchallObj(t, school.BulkStudents{Names: " \n \n"})
		serve(t, http.MethodPost, "/v1/classes/"+class.ID+"/students", token, body, http.StatusBadRequest)
	})

	t.Run("Add activity column", func(t *testing.T) {
		var got school.ClassRoom
		dec := serve(t, http.MethodPost, "/v1/classes/"+class.ID+"/activities", token, nil, http.StatusOK)
		decode(t, dec, &got)
		if got.ActivityCount != school.DefaultActivityCount+1 {
			t.Errorf("activity count = %d; want %d", got.ActivityCount, school.DefaultActivityCount+1)
		}
	})

	t.Run("Activity metadata", func(t *testing.T) {
		body := marchallObj(t, echoapi.ActivityMetaRequest{Bimester: 1, Index: iPtr(3), Date: "2026-03-10", Content: "Fractions quiz"})
		var got school.ClassRoom
		dec := serve(t, http.MethodPut, "/v1/classes/"+class.ID+"/activities", token, body, http.StatusOK)
		decode(t, dec, &got)
		if meta := got.ActivityMetadata[school.Bimester1][3]; meta.Content != "Fractions quiz" {
			t.Errorf("unexpected metadata %+v", meta)
		}

		// indexes outside the grid are input errors
		body = marchallObj(t, echoapi.ActivityMetaRequest{Bimester: 1, Index: iPtr(4), Date: "2026-03-10", Content: "Ghost"})
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"index": "activity index out of range"}),
		}
		req, rec := newAuthRequest(http.MethodPut, "/v1/classes/"+class.ID+"/activities", token, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	score := func(kind string, b int, idx *int, val *float64) []byte {
		return marchallObj(t, echoapi.ScoreRequest{Kind: kind, Bimester: b, Index: idx, Score: val})
	}
	scorePath := func(st school.Student) string {
		return fmt.Sprintf("/v1/classes/%s/students/%s/score", class.ID, st.ID)
	}
	alice := students[0]

	t.Run("Score validation", func(t *testing.T) {
		serve(t, http.MethodPut, scorePath(alice), token, score("lol", 1, nil, fPtr(5)), http.StatusBadRequest)
		// bimester is mandatory except for the year-end final exam
		serve(t, http.MethodPut, scorePath(alice), token, score("exam", 0, nil, fPtr(5)), http.StatusBadRequest)
		// activity scores address a column
		serve(t, http.MethodPut, scorePath(alice), token, score("activity", 1, nil, fPtr(5)), http.StatusBadRequest)
		serve(t, http.MethodPut, scorePath(alice), token, score("activity", 1, iPtr(9), fPtr(5)), http.StatusBadRequest)
	})

	t.Run("Unknown student", func(t *testing.T) {
		path := fmt.Sprintf("/v1/classes/%s/students/nope/score", class.ID)
		serve(t, http.MethodPut, path, token, score("exam", 1, nil, fPtr(5)), http.StatusNotFound)
	})

	t.Run("Full year and report", func(t *testing.T) {
		// 8 on the first activity and 6 on the exam each bimester: (8+6)/2 = 7
		for b := 1; b <= 4; b++ {
			serve(t, http.MethodPut, scorePath(alice), token, score("activity", b, iPtr(0), fPtr(8)), http.StatusOK)
			serve(t, http.MethodPut, scorePath(alice), token, score("exam", b, nil, fPtr(6)), http.StatusOK)
		}

		var rows []grading.ReportRow
		dec := serve(t, http.MethodGet, "/v1/classes/"+class.ID+"/report", token, nil, http.StatusOK)
		decode(t, dec, &rows)
		if len(rows) != 2 {
			t.Fatalf("got %d rows; want 2", len(rows))
		}
		row := rows[0]
		if row.StudentID != alice.ID || row.Effective != [4]float64{7, 7, 7, 7} {
			t.Fatalf("unexpected row %+v", row)
		}
		if row.Outcome.Sum != 28 || row.Outcome.FinalExamRequired || !row.Outcome.Approved {
			t.Errorf("unexpected outcome %+v", row.Outcome)
		}

		// clearing the activity drops bimester 1 to (0+6)/2 = 3; a recovery
		// exam of 5 then lifts it back over the grade it replaces
		serve(t, http.MethodPut, scorePath(alice), token, score("activity", 1, iPtr(0), nil), http.StatusOK)
		serve(t, http.MethodPut, scorePath(alice), token, score("recovery", 1, nil, fPtr(5)), http.StatusOK)

		dec = serve(t, http.MethodGet, "/v1/classes/"+class.ID+"/report", token, nil, http.StatusOK)
		decode(t, dec, &rows)
		row = rows[0]
		if row.Effective != [4]float64{5, 7, 7, 7} {
			t.Fatalf("unexpected effective grades %+v", row.Effective)
		}
		if row.Outcome.Sum != 26 || !row.Outcome.FinalExamRequired || row.Outcome.Approved {
			t.Fatalf("unexpected outcome %+v", row.Outcome)
		}

		// the final exam decides the year: (6.5 + 10) / 2 = 8.25
		serve(t, http.MethodPut, scorePath(alice), token, score("final", 0, nil, fPtr(10)), http.StatusOK)

		dec = serve(t, http.MethodGet, "/v1/classes/"+class.ID+"/report", token, nil, http.StatusOK)
		decode(t, dec, &rows)
		row = rows[0]
		if row.Outcome.FinalGrade != 8.25 || !row.Outcome.Approved {
			t.Errorf("unexpected outcome %+v", row.Outcome)
		}
	})

	t.Run("Delete student", func(t *testing.T) {
		bob := students[1]
		serve(t, http.MethodDelete, fmt.Sprintf("/v1/classes/%s/students/%s", class.ID, bob.ID), token, nil, http.StatusNoContent)
		serve(t, http.MethodDelete, fmt.Sprintf("/v1/classes/%s/students/%s", class.ID, bob.ID), token, nil, http.StatusNotFound)
	})
}

func Test_gradebookApi_syncStatus(t *testing.T) {
	usr := createUser(t, "Syncer", "sync@test.cd", "PassW0rd!")
	seed := openSession(t, usr)
	token := getToken(t, usr)

	status := func(t *testing.T) echoapi.SyncStatusResponse {
		t.Helper()
		var resp echoapi.SyncStatusResponse
		dec := serve(t, http.MethodGet, "/v1/gradebook/status", token, nil, http.StatusOK)
		decode(t, dec, &resp)
		return resp
	}
	setOnline := func(t *testing.T, online bool) echoapi.SyncStatusResponse {
		t.Helper()
		var resp echoapi.SyncStatusResponse
		body := marchallObj(t, echoapi.ConnectivityRequest{Online: &online})
		dec := serve(t, http.MethodPut, "/v1/gradebook/connectivity", token, body, http.StatusOK)
		decode(t, dec, &resp)
		return resp
	}

	if resp := status(t); resp.Status != "synced" || !resp.Online {
		t.Fatalf("fresh session status = %+v", resp)
	}

	if resp := setOnline(t, false); resp.Status != "offline" || resp.Online {
		t.Fatalf("offline status = %+v", resp)
	}

	// offline edits are accepted and queued
	body := marchallObj(t, school.NewClass{Name: "Offline Class", Subject: "Geography", Year: "2026"})
	serve(t, http.MethodPost, "/v1/schools/"+seed.ID+"/classes", token, body, http.StatusCreated)
	if resp := status(t); resp.Status != "offline" {
		t.Fatalf("status after offline edit = %+v", resp)
	}

	// reconnecting resumes the debounced push
	if resp := setOnline(t, true); resp.Status != "pending" || !resp.Online {
		t.Fatalf("status after reconnect = %+v", resp)
	}
}

func Test_gradebookApi_analysis(t *testing.T) {
	usr := createUser(t, "Analyst", "analysis@test.cd", "PassW0rd!")
	seed := openSession(t, usr)
	token := getToken(t, usr)
	class := createClass(t, token, seed.ID, "Empty Class")

	var resp echoapi.AnalysisResponse
	dec := serve(t, http.MethodGet, "/v1/classes/"+class.ID+"/analysis", token, nil, http.StatusOK)
	decode(t, dec, &resp)
	if resp.Analysis != "This class has no students yet." {
		t.Errorf("unexpected analysis %q", resp.Analysis)
	}
}
