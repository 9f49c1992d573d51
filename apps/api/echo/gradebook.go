package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edugrade/core"
	"github.com/trezcool/edugrade/core/grading"
	"github.com/trezcool/edugrade/core/school"
	"github.com/trezcool/edugrade/core/syncengine"
	aisvc "github.com/trezcool/edugrade/services/ai"
)

type gradebookApi struct {
	svc      *school.Service
	aiSvc    *aisvc.Service
	validate *validator.Validate
}

func registerGradebookAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *ServerDeps) {
	api := gradebookApi{
		svc:      deps.SchoolSvc,
		aiSvc:    deps.AISvc,
		validate: deps.Validate,
	}

	ag := g.Group("", jwt)

	ag.GET("/gradebook", api.snapshot)
	ag.GET("/gradebook/status", api.syncStatus)
	ag.PUT("/gradebook/connectivity", api.setConnectivity)

	sg := ag.Group("/schools")
	sg.POST("", api.createSchool)
	sg.PUT("/:id", api.renameSchool)
	sg.DELETE("/:id", api.destroySchool)
	sg.GET("/:id/classes", api.querySchoolClasses)
	sg.POST("/:id/classes", api.createClass)

	cg := ag.Group("/classes/:id")
	cg.GET("", api.retrieveClass)
	cg.DELETE("", api.destroyClass)
	cg.POST("/archive", api.archiveClass)
	cg.POST("/restore", api.restoreClass)
	cg.POST("/students", api.addStudents)
	cg.DELETE("/students/:studentID", api.destroyStudent)
	cg.PUT("/students/:studentID/score", api.setScore)
	cg.POST("/activities", api.addActivityColumn)
	cg.PUT("/activities", api.updateActivityMeta)
	cg.GET("/report", api.annualReport)
	cg.GET("/analysis", api.analyzeClass)
}

// session opens (or returns) the gradebook session of the authenticated teacher.
func (api *gradebookApi) session(ctx echo.Context) (*school.Session, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return nil, err
	}
	sess, err := api.svc.Open(ctx.Request().Context(), claims.Subject)
	return sess, errors.Wrap(err, "opening gradebook session")
}

// Handlers

func (api *gradebookApi) snapshot(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess.Snapshot())
}

func (api *gradebookApi) syncStatus(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SyncStatusResponse{
		Status: sess.SyncStatus(),
		Online: sess.Online(),
	})
}

func (api *gradebookApi) setConnectivity(ctx echo.Context) error {
	var data ConnectivityRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConnectivityRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	sess.SetOnline(*data.Online)
	return ctx.JSON(http.StatusOK, SyncStatusResponse{
		Status: sess.SyncStatus(),
		Online: sess.Online(),
	})
}

func (api *gradebookApi) createSchool(ctx echo.Context) error {
	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	sc, err := sess.CreateSchool(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating school")
	}
	return ctx.JSON(http.StatusCreated, sc)
}

func (api *gradebookApi) renameSchool(ctx echo.Context) error {
	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	sc, err := sess.RenameSchool(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return notFound(err)
	}
	return ctx.JSON(http.StatusOK, sc)
}

func (api *gradebookApi) destroySchool(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	if err := sess.DeleteSchool(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return notFound(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradebookApi) querySchoolClasses(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}

	snap := sess.Snapshot()
	if _, ok := snap.SchoolByID(ctx.Param("id")); !ok {
		return errHttpNotFound
	}

	// archived classes are hidden unless asked for
	var statuses []school.ClassStatus
	switch status := school.ClassStatus(ctx.QueryParam("status")); {
	case status == "all":
	case status.Valid():
		statuses = append(statuses, status)
	case status == "":
		statuses = append(statuses, school.StatusActive)
	default:
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "must be one of: active, archived, all"})
	}

	return ctx.JSON(http.StatusOK, snap.SchoolClasses(ctx.Param("id"), statuses...))
}

func (api *gradebookApi) createClass(ctx echo.Context) error {
	var data school.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	class, err := sess.CreateClass(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return notFound(err)
	}
	return ctx.JSON(http.StatusCreated, class)
}

func (api *gradebookApi) retrieveClass(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	class, err := sess.Class(ctx.Param("id"))
	if err != nil {
		return notFound(err)
	}

	// the tab param only selects the client view; validate it here so a bad
	// link fails loudly instead of rendering an empty grid
	if tab := ctx.QueryParam("tab"); tab != "" {
		if _, err := grading.ParseTab(tab); err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "tab", Error: err.Error()})
		}
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *gradebookApi) destroyClass(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	if err := sess.DeleteClass(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return notFound(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradebookApi) archiveClass(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	class, err := sess.ArchiveClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return notFound(err)
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *gradebookApi) restoreClass(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	class, err := sess.RestoreClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return notFound(err)
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *gradebookApi) addStudents(ctx echo.Context) error {
	var data school.BulkStudents
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkStudents")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	students, err := sess.AddStudents(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return notFound(err)
	}
	return ctx.JSON(http.StatusCreated, students)
}

func (api *gradebookApi) destroyStudent(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	if err := sess.DeleteStudent(ctx.Request().Context(), ctx.Param("id"), ctx.Param("studentID")); err != nil {
		return notFound(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradebookApi) addActivityColumn(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	class, err := sess.AddActivityColumn(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return notFound(err)
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *gradebookApi) updateActivityMeta(ctx echo.Context) error {
	var data ActivityMetaRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ActivityMetaRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	class, err := sess.Class(ctx.Param("id"))
	if err != nil {
		return notFound(err)
	}
	// a bad index from the client is an input error, not a bug
	if *data.Index < 0 || *data.Index >= class.ActivityCount {
		return core.NewValidationError(nil, core.FieldError{Field: "index", Error: "activity index out of range"})
	}

	class, err = sess.UpdateActivityMeta(
		ctx.Request().Context(), ctx.Param("id"),
		school.Bimester(data.Bimester), *data.Index,
		school.ActivityMeta{Date: data.Date, Content: data.Content},
	)
	if err != nil {
		return notFound(err)
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *gradebookApi) setScore(ctx echo.Context) error {
	var data ScoreRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScoreRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.session(ctx)
	if err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	classID, studentID := ctx.Param("id"), ctx.Param("studentID")
	b := school.Bimester(data.Bimester)
	score := null.Float64FromPtr(data.Score)

	var class school.ClassRoom
	switch data.Kind {
	case ScoreActivity:
		cls, cErr := sess.Class(classID)
		if cErr != nil {
			return notFound(cErr)
		}
		if *data.Index < 0 || *data.Index >= cls.ActivityCount {
			return core.NewValidationError(nil, core.FieldError{Field: "index", Error: "activity index out of range"})
		}
		class, err = sess.SetActivityScore(reqCtx, classID, studentID, b, *data.Index, score)
	case ScoreExam:
		class, err = sess.SetExam(reqCtx, classID, studentID, b, score)
	case ScoreExtra:
		class, err = sess.SetExtra(reqCtx, classID, studentID, b, score)
	case ScoreRecovery:
		class, err = sess.SetRecovery(reqCtx, classID, studentID, b, score)
	case ScoreFinal:
		class, err = sess.SetFinalExam(reqCtx, classID, studentID, score)
	}
	if err != nil {
		return notFound(err)
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *gradebookApi) annualReport(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	class, err := sess.Class(ctx.Param("id"))
	if err != nil {
		return notFound(err)
	}
	return ctx.JSON(http.StatusOK, grading.Report(class))
}

func (api *gradebookApi) analyzeClass(ctx echo.Context) error {
	sess, err := api.session(ctx)
	if err != nil {
		return err
	}
	class, err := sess.Class(ctx.Param("id"))
	if err != nil {
		return notFound(err)
	}

	analysis := api.aiSvc.AnalyzeClass(ctx.Request().Context(), class, grading.Report(class))
	return ctx.JSON(http.StatusOK, AnalysisResponse{Analysis: analysis})
}

// Score kinds accepted by setScore.
const (
	ScoreActivity = "activity"
	ScoreExam     = "exam"
	ScoreExtra    = "extra"
	ScoreRecovery = "recovery"
	ScoreFinal    = "final"
)

type (
	SyncStatusResponse struct {
		Status syncengine.State `json:"status"`
		Online bool             `json:"online"`
	}

	ConnectivityRequest struct {
		Online *bool `json:"online" validate:"required"`
	}

	ActivityMetaRequest struct {
		Bimester int    `json:"bimester" validate:"required,min=1,max=4"`
		Index    *int   `json:"index" validate:"required"`
		Date     string `json:"date"`
		Content  string `json:"content"`
	}

	ScoreRequest struct {
		Kind     string   `json:"kind" validate:"required,oneof=activity exam extra recovery final"`
		Bimester int      `json:"bimester" validate:"required_unless=Kind final,omitempty,min=1,max=4"`
		Index    *int     `json:"index" validate:"required_if=Kind activity"`
		Score    *float64 `json:"score" validate:"omitempty,min=0"`
	}

	AnalysisResponse struct {
		Analysis string `json:"analysis"`
	}
)

func (cr *ConnectivityRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(cr)
}

func (ar *ActivityMetaRequest) Validate(validate *validator.Validate) error {
	ar.Date = core.CleanString(ar.Date)
	ar.Content = core.CleanString(ar.Content)
	return validate.Struct(ar)
}

func (sr *ScoreRequest) Validate(validate *validator.Validate) error {
	sr.Kind = core.CleanString(sr.Kind, true /* lower */)
	return validate.Struct(sr)
}
