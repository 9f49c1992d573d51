package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	. "github.com/trezcool/edugrade/apps/api/echo"
	"github.com/trezcool/edugrade/core"
	"github.com/trezcool/edugrade/core/school"
	"github.com/trezcool/edugrade/core/user"
	aisvc "github.com/trezcool/edugrade/services/ai"
	emailsvc "github.com/trezcool/edugrade/services/email"
	inmemdb "github.com/trezcool/edugrade/storage/database/inmem"
	"github.com/trezcool/edugrade/storage/localcache"
)

var (
	app        *Server
	usrSvc     *user.Service
	schoolSvc  *school.Service
	schoolRepo school.Repository

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func TestMain(m *testing.M) {
	conf := &core.Config{
		TestMode:  true,
		AppName:   "EduGrade",
		SecretKey: "s3cr3t-t3st-k3y",
		Server: core.ServerConfig{
			JWTExpirationDelta:        7 * 24 * time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		},
		Sync:       core.SyncConfig{Debounce: 3 * time.Second},
		LocalCache: core.LocalCacheConfig{InMemory: true},
	}
	core.Conf = conf
	logger := nopLogger{}

	// set up DB & repos
	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	schoolRepo = inmemdb.NewSchoolRepository(db)
	local, err := localcache.NewStore(conf)
	if err != nil {
		fmt.Printf("localcache.NewStore(): %v", err)
		os.Exit(1)
	}

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock()
	usrSvc = user.NewService(conf, usrRepo, mailSvc, logger)
	schoolSvc = school.NewService(schoolRepo, local, logger, conf)
	aiSvc := aisvc.NewService(conf, logger)

	// set up validation
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)

	// set up server
	app = NewServer(
		"", /* addr */
		&ServerDeps{
			Conf:       conf,
			Logger:     logger,
			UserSvc:    usrSvc,
			SchoolSvc:  schoolSvc,
			AISvc:      aiSvc,
			Validate:   validate,
			Translator: translator,
		},
	)

	// run tests
	code := m.Run()

	// clean up
	if err = local.Close(); err != nil {
		fmt.Printf("local.Close(): %v", err)
		os.Exit(1)
	}

	os.Exit(code)
}

func createUser(t *testing.T, name, email, pwd string) user.User {
	t.Helper()
	usr, err := usrSvc.Create(context.Background(), user.NewUser{
		Name:            name,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
	})
	if err != nil {
		t.Fatalf("createUser(): %v", err)
	}
	return usr
}

// openSession seeds the remote store with one school and waits for the
// session's initial refresh to pick it up, so later requests cannot race
// the whole-snapshot replace.
func openSession(t *testing.T, usr user.User) school.School {
	t.Helper()
	ctx := context.Background()

	seed := school.MakeSchool(school.NewSchool{Name: "Seed School " + usr.ID})
	if err := schoolRepo.UpsertSchools(ctx, usr.ID, []school.School{seed}); err != nil {
		t.Fatalf("seeding remote school: %v", err)
	}

	sess, err := schoolSvc.Open(ctx, usr.ID)
	if err != nil {
		t.Fatalf("opening session: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := sess.Snapshot()
		if _, ok := snap.SchoolByID(seed.ID); ok {
			return seed
		}
		if time.Now().After(deadline) {
			t.Fatal("session refresh did not pick up the seeded school")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return false, nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
