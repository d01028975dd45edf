package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/freightops/go-freight-backend/internal/domain"
	"github.com/freightops/go-freight-backend/internal/guard"
	"github.com/freightops/go-freight-backend/internal/services"
	"github.com/freightops/go-freight-backend/internal/session"
)

func init() { gin.SetMode(gin.TestMode) }

//
// Fakes
//

type fakeConsignments struct {
	createErr  error
	lastFormID string
}

func (f *fakeConsignments) Create(ctx context.Context, formID string, n *domain.ConsignmentNote) (*domain.ConsignmentNote, error) {
	f.lastFormID = formID
	if f.createErr != nil {
		return nil, f.createErr
	}
	n.ID = "11111111-1111-1111-1111-111111111111"
	return n, nil
}

func (f *fakeConsignments) Get(ctx context.Context, id string) (*domain.ConsignmentNote, error) {
	return nil, services.ErrRecordNotFound
}

func (f *fakeConsignments) ListPage(ctx context.Context, kind string, page, pageSize int) ([]domain.ConsignmentNote, int64, error) {
	return []domain.ConsignmentNote{}, 0, nil
}

func (f *fakeConsignments) Update(ctx context.Context, formID, id string, upd *domain.ConsignmentNote) (*domain.ConsignmentNote, error) {
	upd.ID = id
	return upd, nil
}

type fakeSessions struct {
	info    session.Info
	began   string
	ended   bool
	touch   bool
	noSess  bool
	touched bool
}

func (f *fakeSessions) Begin(ctx context.Context, user string) (session.Info, error) {
	f.began = user
	return session.Info{Status: session.StatusActive, User: user}, nil
}

func (f *fakeSessions) Check(ctx context.Context) (session.Info, error) { return f.info, nil }

func (f *fakeSessions) Touch(ctx context.Context) (session.Info, bool, error) {
	f.touched = true
	if f.noSess {
		return session.Info{Status: session.StatusNoSession}, false, session.ErrNoSession
	}
	return f.info, f.touch, nil
}

func (f *fakeSessions) End(ctx context.Context) error {
	f.ended = true
	return nil
}

type fakeRecords struct{ recs []domain.CachedRecord }

func (f fakeRecords) Snapshot() []domain.CachedRecord { return append([]domain.CachedRecord{}, f.recs...) }
func (f fakeRecords) Len() int                        { return len(f.recs) }

func testRouter(cons ConsignmentService, sess SessionService, recs RecordsSource) *gin.Engine {
	r := gin.New()
	h := New(cons, nil, nil, sess, recs)
	r.POST("/consignments", h.CreateConsignment)
	r.GET("/consignments/:id", h.GetConsignment)
	r.POST("/session", h.Login)
	r.GET("/session", h.SessionStatus)
	r.POST("/session/activity", h.SessionActivity)
	r.DELETE("/session", h.Logout)
	r.GET("/records", h.ListRecords)
	return r
}

func doJSON(r *gin.Engine, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const consignmentBody = `{
	"kind": "booking",
	"lr_number": "LR-900",
	"consignor": "Sharma Traders",
	"consignee": "Verma & Sons",
	"from_station": "Delhi",
	"to_station": "Mumbai",
	"freight": 1250
}`

func TestCreateConsignment_CreatedWithFormID(t *testing.T) {
	cons := &fakeConsignments{}
	r := testRouter(cons, &fakeSessions{}, fakeRecords{})

	w := doJSON(r, http.MethodPost, "/consignments", consignmentBody,
		map[string]string{"X-Form-ID": "dailyRegisterForm"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if cons.lastFormID != "dailyRegisterForm" {
		t.Fatalf("formID = %q, want dailyRegisterForm", cons.lastFormID)
	}
}

func TestCreateConsignment_BadJSON(t *testing.T) {
	r := testRouter(&fakeConsignments{}, &fakeSessions{}, fakeRecords{})
	w := doJSON(r, http.MethodPost, "/consignments", `{"kind": `, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCreateConsignment_GuardErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{guard.ErrThrottled, http.StatusTooManyRequests, ErrCodeThrottled},
		{guard.ErrDuplicateBusinessKey, http.StatusConflict, ErrCodeDuplicateKey},
		{guard.ErrDuplicateCreation, http.StatusConflict, ErrCodeDuplicateCall},
		{services.ErrMissingBusinessKey, http.StatusBadRequest, ErrCodeBadRequest},
	}
	for _, tc := range cases {
		// Guard sentinels surface wrapped in a Rejection in production;
		// mapping must work through errors.Is either way.
		err := error(&guard.Rejection{Validator: "gate", Err: tc.err})
		if tc.err == services.ErrMissingBusinessKey {
			err = tc.err
		}
		r := testRouter(&fakeConsignments{createErr: err}, &fakeSessions{}, fakeRecords{})
		w := doJSON(r, http.MethodPost, "/consignments", consignmentBody, nil)
		if w.Code != tc.status {
			t.Errorf("%v: status = %d, want %d", tc.err, w.Code, tc.status)
		}
		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%v: decode: %v", tc.err, err)
		}
		if resp.Code != tc.code {
			t.Errorf("%v: code = %q, want %q", tc.err, resp.Code, tc.code)
		}
	}
}

func TestCreateConsignment_DuplicateKeyNamesValue(t *testing.T) {
	err := &guard.Rejection{
		Validator: "uniqueness",
		Err:       guard.ErrDuplicateBusinessKey,
		Key:       "LR-900",
	}
	r := testRouter(&fakeConsignments{createErr: err}, &fakeSessions{}, fakeRecords{})

	w := doJSON(r, http.MethodPost, "/consignments", consignmentBody, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != ErrCodeDuplicateKey {
		t.Fatalf("code = %q, want %q", resp.Code, ErrCodeDuplicateKey)
	}
	// The alert names the conflicting value so the operator can find the
	// record that already holds it.
	if !strings.Contains(resp.Message, "LR-900") {
		t.Fatalf("message %q does not name the conflicting key", resp.Message)
	}
}

func TestGetConsignment_BadIDAndNotFound(t *testing.T) {
	r := testRouter(&fakeConsignments{}, &fakeSessions{}, fakeRecords{})

	if w := doJSON(r, http.MethodGet, "/consignments/not-a-uuid", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed id status = %d, want 400", w.Code)
	}
	w := doJSON(r, http.MethodGet, "/consignments/11111111-1111-1111-1111-111111111111", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing record status = %d, want 404", w.Code)
	}
}

func TestSessionEndpoints(t *testing.T) {
	sess := &fakeSessions{info: session.Info{Status: session.StatusActive, User: "clerk"}, touch: true}
	r := testRouter(&fakeConsignments{}, sess, fakeRecords{})

	if w := doJSON(r, http.MethodPost, "/session", `{"user":"clerk"}`, nil); w.Code != http.StatusCreated {
		t.Fatalf("login status = %d", w.Code)
	}
	if sess.began != "clerk" {
		t.Fatalf("began = %q", sess.began)
	}

	if w := doJSON(r, http.MethodPost, "/session", `{}`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("empty user status = %d, want 400", w.Code)
	}

	if w := doJSON(r, http.MethodGet, "/session", "", nil); w.Code != http.StatusOK {
		t.Fatalf("status endpoint = %d", w.Code)
	}

	w := doJSON(r, http.MethodPost, "/session/activity", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("activity status = %d", w.Code)
	}
	var act ActivityResponse
	if err := json.Unmarshal(w.Body.Bytes(), &act); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !act.Extended {
		t.Fatal("expected extension to be reported")
	}

	if w := doJSON(r, http.MethodDelete, "/session", "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", w.Code)
	}
	if !sess.ended {
		t.Fatal("logout did not end the session")
	}
}

func TestSessionActivity_NoSession(t *testing.T) {
	sess := &fakeSessions{noSess: true}
	r := testRouter(&fakeConsignments{}, sess, fakeRecords{})
	w := doJSON(r, http.MethodPost, "/session/activity", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestListRecords_FilterByKind(t *testing.T) {
	recs := fakeRecords{recs: []domain.CachedRecord{
		{Kind: domain.KindConsignmentBooking, BusinessKey: "LR-1", BackendID: "a"},
		{Kind: domain.KindChallanBook, BusinessKey: "CH-1", BackendID: "b"},
	}}
	r := testRouter(&fakeConsignments{}, &fakeSessions{}, recs)

	w := doJSON(r, http.MethodGet, "/records", "", nil)
	var all RecordsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if all.Count != 2 {
		t.Fatalf("count = %d, want 2", all.Count)
	}

	w = doJSON(r, http.MethodGet, "/records?kind=challan-book", "", nil)
	var filtered RecordsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &filtered); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if filtered.Count != 1 || filtered.Records[0].Kind != domain.KindChallanBook {
		t.Fatalf("unexpected filtered response: %+v", filtered)
	}

	if w := doJSON(r, http.MethodGet, "/records?kind=bogus", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bogus kind status = %d, want 400", w.Code)
	}
}
