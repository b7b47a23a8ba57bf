package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"example.com/roster/internal/domain"
	"example.com/roster/internal/roster"
)

func newTestMux(t *testing.T, opts ...roster.StoreOption) *http.ServeMux {
	t.Helper()
	catalog, err := roster.DefaultCatalog()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	service := domain.NewService(roster.NewInMemoryStore(catalog, opts...))
	mux := http.NewServeMux()
	NewHandler(service, nil).RegisterRoutes(mux)
	return mux
}

func do(t *testing.T, mux http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func listActivities(t *testing.T, mux http.Handler) map[string]ActivityView {
	t.Helper()
	rr := do(t, mux, http.MethodGet, "/activities")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var body map[string]ActivityView
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func decodeField(t *testing.T, rr *httptest.ResponseRecorder, field string) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body[field]
}

func TestGetActivitiesReturnsCatalog(t *testing.T) {
	mux := newTestMux(t)

	rr := do(t, mux, http.MethodGet, "/activities")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(raw) != 9 {
		t.Fatalf("expected 9 activities got %d", len(raw))
	}
	for _, key := range []string{"description", "schedule", "max_participants", "participants"} {
		if _, ok := raw["Chess Club"][key]; !ok {
			t.Fatalf("chess club missing field %s", key)
		}
	}

	chess := listActivities(t, mux)["Chess Club"]
	if strings.Join(chess.Participants, ",") != "michael@mergington.edu,daniel@mergington.edu" {
		t.Fatalf("unexpected participants %v", chess.Participants)
	}
}

func TestSignupAddsParticipant(t *testing.T) {
	mux := newTestMux(t)
	before := len(listActivities(t, mux)["Art Studio"].Participants)

	rr := do(t, mux, http.MethodPost, "/activities/Art%20Studio/signup?email=newartist@mergington.edu")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	if msg := decodeField(t, rr, "message"); msg != "Signed up newartist@mergington.edu for Art Studio" {
		t.Fatalf("unexpected message %q", msg)
	}

	after := listActivities(t, mux)["Art Studio"].Participants
	if len(after) != before+1 {
		t.Fatalf("expected %d participants got %d", before+1, len(after))
	}
	if after[len(after)-1] != "newartist@mergington.edu" {
		t.Fatalf("new participant missing from %v", after)
	}
}

func TestSignupDuplicateReturns400(t *testing.T) {
	mux := newTestMux(t)

	rr := do(t, mux, http.MethodPost, "/activities/Chess%20Club/signup?email=michael@mergington.edu")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
	if detail := decodeField(t, rr, "detail"); !strings.Contains(detail, "already signed up") {
		t.Fatalf("unexpected detail %q", detail)
	}
	if n := len(listActivities(t, mux)["Chess Club"].Participants); n != 2 {
		t.Fatalf("expected roster unchanged, got %d participants", n)
	}
}

func TestSignupUnknownActivityReturns404(t *testing.T) {
	mux := newTestMux(t)

	rr := do(t, mux, http.MethodPost, "/activities/Fake%20Activity/signup?email=student@mergington.edu")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
	if detail := decodeField(t, rr, "detail"); detail != "Activity not found" {
		t.Fatalf("unexpected detail %q", detail)
	}
}

func TestSignupFullActivityReturns400(t *testing.T) {
	service := domain.NewService(roster.NewInMemoryStore(domain.Catalog{
		"Quartet": {MaxParticipants: 1, Participants: []string{"a@x.edu"}},
	}))
	mux := http.NewServeMux()
	NewHandler(service, nil).RegisterRoutes(mux)

	rr := do(t, mux, http.MethodPost, "/activities/Quartet/signup?email=b@x.edu")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
	if detail := decodeField(t, rr, "detail"); detail != "Activity is full" {
		t.Fatalf("unexpected detail %q", detail)
	}
}

func TestSignupRequiresEmail(t *testing.T) {
	mux := newTestMux(t)

	for _, target := range []string{
		"/activities/Chess%20Club/signup",
		"/activities/Chess%20Club/signup?mail=a@x.edu",
	} {
		rr := do(t, mux, http.MethodPost, target)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422 got %d", target, rr.Code)
		}
	}
	rr := do(t, mux, http.MethodDelete, "/activities/Chess%20Club/unregister")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unregister: expected 422 got %d", rr.Code)
	}

	if got := len(listActivities(t, mux)["Chess Club"].Participants); got != 2 {
		t.Fatalf("expected roster untouched, got %d participants", got)
	}
}

func TestBlankEmailIsAnOpaqueValue(t *testing.T) {
	mux := newTestMux(t)

	rr := do(t, mux, http.MethodPost, "/activities/Chess%20Club/signup?email=%20")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	if msg := decodeField(t, rr, "message"); msg != "Signed up   for Chess Club" {
		t.Fatalf("unexpected message %q", msg)
	}

	rr = do(t, mux, http.MethodPost, "/activities/Chess%20Club/signup?email=%20")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on duplicate blank email got %d", rr.Code)
	}

	participants := listActivities(t, mux)["Chess Club"].Participants
	if len(participants) != 3 || participants[2] != " " {
		t.Fatalf("expected blank email appended, got %q", participants)
	}

	rr = do(t, mux, http.MethodDelete, "/activities/Chess%20Club/unregister?email=")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty email not on roster got %d", rr.Code)
	}
	if detail := decodeField(t, rr, "detail"); detail != "Student is not signed up for this activity" {
		t.Fatalf("unexpected detail %q", detail)
	}

	rr = do(t, mux, http.MethodDelete, "/activities/Chess%20Club/unregister?email=%20")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
}

func TestSignupEncodedEmail(t *testing.T) {
	mux := newTestMux(t)

	rr := do(t, mux, http.MethodPost, "/activities/Chess%20Club/signup?email=first%2Blast%40mergington.edu")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	found := false
	for _, p := range listActivities(t, mux)["Chess Club"].Participants {
		if p == "first+last@mergington.edu" {
			found = true
		}
	}
	if !found {
		t.Fatalf("decoded email not enrolled")
	}
}

func TestUnregisterRemovesParticipant(t *testing.T) {
	mux := newTestMux(t)

	rr := do(t, mux, http.MethodDelete, "/activities/Robotics%20Club/unregister?email=ethan@mergington.edu")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	msg := decodeField(t, rr, "message")
	if !strings.Contains(msg, "Unregistered") || !strings.Contains(msg, "ethan@mergington.edu") {
		t.Fatalf("unexpected message %q", msg)
	}
	if n := len(listActivities(t, mux)["Robotics Club"].Participants); n != 0 {
		t.Fatalf("expected empty roster got %d", n)
	}
}

func TestUnregisterErrors(t *testing.T) {
	mux := newTestMux(t)

	rr := do(t, mux, http.MethodDelete, "/activities/Chess%20Club/unregister?email=notregistered@mergington.edu")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
	if detail := decodeField(t, rr, "detail"); !strings.Contains(detail, "not signed up") {
		t.Fatalf("unexpected detail %q", detail)
	}

	rr = do(t, mux, http.MethodDelete, "/activities/Fake%20Activity/unregister?email=student@mergington.edu")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
	if detail := decodeField(t, rr, "detail"); detail != "Activity not found" {
		t.Fatalf("unexpected detail %q", detail)
	}
}

func TestSignupThenUnregisterAcrossActivities(t *testing.T) {
	mux := newTestMux(t)
	email := "multijoiner@mergington.edu"
	activities := []string{"Chess%20Club", "Drama%20Club", "Tennis%20Club"}

	for _, a := range activities {
		if rr := do(t, mux, http.MethodPost, "/activities/"+a+"/signup?email="+email); rr.Code != http.StatusOK {
			t.Fatalf("signup %s: expected 200 got %d", a, rr.Code)
		}
	}
	if rr := do(t, mux, http.MethodPost, "/activities/Drama%20Club/signup?email="+email); rr.Code != http.StatusBadRequest {
		t.Fatalf("duplicate signup: expected 400 got %d", rr.Code)
	}
	for _, a := range activities {
		if rr := do(t, mux, http.MethodDelete, "/activities/"+a+"/unregister?email="+email); rr.Code != http.StatusOK {
			t.Fatalf("unregister %s: expected 200 got %d", a, rr.Code)
		}
	}

	data := listActivities(t, mux)
	for _, name := range []string{"Chess Club", "Drama Club", "Tennis Club"} {
		for _, p := range data[name].Participants {
			if p == email {
				t.Fatalf("%s still lists %s", name, email)
			}
		}
	}
}

func TestWrongMethodIsRejected(t *testing.T) {
	mux := newTestMux(t)

	rr := do(t, mux, http.MethodGet, "/activities/Chess%20Club/signup?email=a@x.edu")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	mux := newTestMux(t)

	rr := do(t, mux, http.MethodGet, "/healthz")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected healthz response %d %q", rr.Code, rr.Body.String())
	}
}
