package handlers_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/background"
	"studio/internal/domain"
	"studio/internal/http/handlers"
	"studio/internal/http/httpapi"
	"studio/internal/infra"
	"studio/internal/orchestrator"
	"studio/internal/providers/image"
	"studio/internal/queue"
	"studio/internal/snapshot"
	"studio/internal/storage"
	"studio/internal/studio"
)

// syncRunner settles provider jobs before the request returns, which keeps
// handler tests deterministic.
type syncRunner struct{}

func (syncRunner) Enqueue(j queue.Job) error {
	j(context.Background())
	return nil
}

type fakeGenerator struct{}

func (fakeGenerator) Edit(ctx context.Context, req image.EditRequest) (*image.Asset, error) {
	return &image.Asset{Data: []byte("edited:" + req.Instruction), Format: "image/png"}, nil
}

type fakeResizer struct{}

func (fakeResizer) Resize(ctx context.Context, req image.ResizeRequest) (*image.Asset, error) {
	return &image.Asset{Data: []byte("resized:" + req.RatioLabel), Format: "image/png"}, nil
}

type fakeStore struct {
	mu   sync.Mutex
	recs map[string]snapshot.Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: map[string]snapshot.Record{}}
}

func (f *fakeStore) Exists(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.recs[id]
	return ok, nil
}

func (f *fakeStore) Save(ctx context.Context, rec snapshot.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[rec.SessionID] = rec
	return nil
}

func (f *fakeStore) Load(ctx context.Context, id string) (snapshot.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[id]
	if !ok {
		return snapshot.Record{}, domain.ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) Clear(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.recs, id)
	return nil
}

func (f *fakeStore) List(ctx context.Context) ([]snapshot.Meta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []snapshot.Meta
	for id, rec := range f.recs {
		out = append(out, snapshot.Meta{SessionID: id, Size: len(rec.Data), UpdatedAt: rec.UpdatedAt})
	}
	return out, nil
}

func (f *fakeStore) Purge(ctx context.Context, cutoff time.Time) (int, error) { return 0, nil }

type fixture struct {
	handler http.Handler
	manager *studio.Manager
	store   *fakeStore
	saver   *snapshot.Saver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	files, err := storage.NewFileStore(t.TempDir(), "http://api.test/static")
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	logger := zerolog.Nop()
	orch := orchestrator.New(orchestrator.Options{
		Generators: map[image.Family]image.Generator{
			image.FamilyGemini: fakeGenerator{},
			image.FamilyQwen:   fakeGenerator{},
		},
		Resizer: fakeResizer{},
		Remover: background.NewHTTPRemover(background.Options{Logger: logger}),
		Files:   files,
		Runner:  syncRunner{},
		Logger:  logger,
	})
	manager := studio.NewManager()
	store := newFakeStore()
	saver := snapshot.NewSaver(store, time.Minute, logger)
	cfg := &infra.Config{Port: "8080"}
	app := handlers.NewApp(manager, orch, saver, store, files, cfg, logger)
	return &fixture{
		handler: httpapi.NewRouter(app, nil),
		manager: manager,
		store:   store,
		saver:   saver,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func (f *fixture) createUploadedSession(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/sessions", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session status = %d: %s", rec.Code, rec.Body.String())
	}
	id := decodeJSON[map[string]string](t, rec)["session_id"]

	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("upload-bytes"))
	rec = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/upload", handlers.UploadRequest{Image: payload, Name: "product.png"})
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
	return id
}

func (f *fixture) sessionState(t *testing.T, id string) domain.State {
	t.Helper()
	rec := f.do(t, http.MethodGet, "/v1/sessions/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get session status = %d: %s", rec.Code, rec.Body.String())
	}
	return decodeJSON[domain.State](t, rec)
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	id := f.createUploadedSession(t)

	st := f.sessionState(t, id)
	if st.Uploaded == nil || st.Uploaded.Name != "product.png" {
		t.Fatalf("uploaded = %+v", st.Uploaded)
	}
	if st.ActiveBaseID != domain.OriginalBaseID {
		t.Fatalf("active base = %q, want original", st.ActiveBaseID)
	}
	if len(st.Bases) != 1 || st.Bases[0].Chain.Len() != 1 {
		t.Fatalf("bases = %+v", st.Bases)
	}

	rec := f.do(t, http.MethodDelete, "/v1/sessions/"+id, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/v1/sessions/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
}

func TestUploadRejectsBadPayload(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/sessions", nil)
	id := decodeJSON[map[string]string](t, rec)["session_id"]

	rec = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/upload", handlers.UploadRequest{Image: "not-base64!!!"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestEditFlow(t *testing.T) {
	f := newFixture(t)
	id := f.createUploadedSession(t)

	rec := f.do(t, http.MethodPost, "/v1/sessions/"+id+"/edits", handlers.EditRequest{Prompt: "warmer light"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("edit status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeJSON[handlers.EditResponse](t, rec)
	if len(resp.Pending) != 1 {
		t.Fatalf("pending = %+v, want 1 reservation", resp.Pending)
	}

	st := f.sessionState(t, id)
	chain := st.Bases[0].Chain
	if chain.Len() != 2 {
		t.Fatalf("chain length = %d, want 2", chain.Len())
	}
	if chain.Versions[1].Status != domain.VersionCompleted {
		t.Fatalf("status = %q, want completed with sync runner", chain.Versions[1].Status)
	}
	if chain.Current != 0 {
		t.Fatalf("cursor = %d, want unchanged", chain.Current)
	}

	rec = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/navigate/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("navigate status = %d", rec.Code)
	}
	st = f.sessionState(t, id)
	if st.Bases[0].Chain.Current != 1 {
		t.Fatalf("cursor = %d, want 1", st.Bases[0].Chain.Current)
	}
}

func TestEditCompareFanOutOverHTTP(t *testing.T) {
	f := newFixture(t)
	id := f.createUploadedSession(t)

	rec := f.do(t, http.MethodPost, "/v1/sessions/"+id+"/models", handlers.ModelSettingsRequest{
		Models:         []string{"gemini-2.5-flash-image", "qwen-image-edit"},
		CompareEnabled: true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("models status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/edits", handlers.EditRequest{Prompt: "studio backdrop"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("edit status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeJSON[handlers.EditResponse](t, rec)
	if len(resp.Pending) != 2 {
		t.Fatalf("pending = %+v, want 2 reservations", resp.Pending)
	}

	st := f.sessionState(t, id)
	if st.Bases[0].Chain.Len() != 3 {
		t.Fatalf("chain length = %d, want 3", st.Bases[0].Chain.Len())
	}
}

func TestDeleteVersionGuards(t *testing.T) {
	f := newFixture(t)
	id := f.createUploadedSession(t)

	rec := f.do(t, http.MethodDelete, "/v1/sessions/"+id+"/versions/0", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("delete root status = %d, want 409", rec.Code)
	}

	f.do(t, http.MethodPost, "/v1/sessions/"+id+"/edits", handlers.EditRequest{Prompt: "v2"})
	rec = f.do(t, http.MethodDelete, "/v1/sessions/"+id+"/versions/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body.String())
	}
	st := f.sessionState(t, id)
	if st.Bases[0].Chain.Len() != 1 {
		t.Fatalf("chain length = %d, want 1", st.Bases[0].Chain.Len())
	}
}

func TestVariationEndpoints(t *testing.T) {
	f := newFixture(t)
	id := f.createUploadedSession(t)

	rec := f.do(t, http.MethodPost, "/v1/sessions/"+id+"/variations", handlers.CreateVariationRequest{Title: "Minimalist", Description: "white backdrop"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create variation status = %d: %s", rec.Code, rec.Body.String())
	}
	vid := decodeJSON[map[string]string](t, rec)["variation_id"]

	rec = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/variations/"+vid+"/generate", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("generate status = %d: %s", rec.Code, rec.Body.String())
	}

	st := f.sessionState(t, id)
	if st.Variations[0].Status != domain.VariationCompleted {
		t.Fatalf("variation status = %q, want completed", st.Variations[0].Status)
	}

	rec = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/variations/"+vid+"/edits", handlers.VariationEditRequest{Prompt: "more shadows"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("variation edit status = %d: %s", rec.Code, rec.Body.String())
	}
	st = f.sessionState(t, id)
	if st.Variations[0].Chain.Len() != 2 {
		t.Fatalf("variation chain length = %d, want 2", st.Variations[0].Chain.Len())
	}
	if !st.Variations[0].HasNewVersion {
		t.Fatal("HasNewVersion not set after edit")
	}

	rec = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/variations/"+vid+"/view-latest", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("view-latest status = %d", rec.Code)
	}
	st = f.sessionState(t, id)
	if st.Variations[0].Chain.Current != 1 || st.Variations[0].HasNewVersion {
		t.Fatalf("after view-latest: current = %d, has_new = %v", st.Variations[0].Chain.Current, st.Variations[0].HasNewVersion)
	}

	rec = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/variations/"+vid+"/archive", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("archive status = %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/variations/"+vid+"/duplicate", handlers.DuplicateVariationRequest{Title: "Copy"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("duplicate status = %d: %s", rec.Code, rec.Body.String())
	}
	st = f.sessionState(t, id)
	if len(st.Variations) != 2 {
		t.Fatalf("variations = %d, want 2", len(st.Variations))
	}
	if st.Variations[1].Chain.Len() != 1 {
		t.Fatal("duplicate copied history instead of the displayed image")
	}
}

func TestComparisonEndpoints(t *testing.T) {
	f := newFixture(t)
	id := f.createUploadedSession(t)

	rec := f.do(t, http.MethodPost, "/v1/sessions/"+id+"/comparison/enter", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("enter with single version status = %d, want 400", rec.Code)
	}

	f.do(t, http.MethodPost, "/v1/sessions/"+id+"/edits", handlers.EditRequest{Prompt: "v2"})
	f.do(t, http.MethodPost, "/v1/sessions/"+id+"/edits", handlers.EditRequest{Prompt: "v3"})

	rec = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/comparison/enter", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("enter status = %d: %s", rec.Code, rec.Body.String())
	}
	st := decodeJSON[domain.State](t, rec)
	if !st.Comparison.Active || st.Comparison.LeftIndex != 0 || st.Comparison.RightIndex != 1 {
		t.Fatalf("comparison = %+v", st.Comparison)
	}

	rec = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/comparison/right", handlers.ComparisonSelectRequest{Index: 0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("select pinned side status = %d, want 400", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/comparison/move/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("move status = %d", rec.Code)
	}
	st = decodeJSON[domain.State](t, rec)
	if st.Comparison.RightIndex != 2 {
		t.Fatalf("right = %d, want 2", st.Comparison.RightIndex)
	}

	// Navigation is a context change and closes the comparison.
	f.do(t, http.MethodPost, "/v1/sessions/"+id+"/navigate/1", nil)
	st = f.sessionState(t, id)
	if st.Comparison.Active {
		t.Fatal("comparison survived navigation")
	}
}

func TestSnapshotEndpoints(t *testing.T) {
	f := newFixture(t)
	id := f.createUploadedSession(t)

	rec := f.do(t, http.MethodGet, "/v1/sessions/"+id+"/snapshot", nil)
	if got := decodeJSON[map[string]any](t, rec); got["exists"] != false {
		t.Fatal("snapshot exists before flush")
	}

	rec = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/snapshot/flush", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("flush status = %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/v1/sessions/"+id+"/snapshot", nil)
	meta := decodeJSON[map[string]any](t, rec)
	if meta["exists"] != true {
		t.Fatal("snapshot missing after flush")
	}
	if size, ok := meta["size"].(float64); !ok || size <= 0 {
		t.Fatalf("snapshot size = %v", meta["size"])
	}
	if url, ok := meta["thumbnail_url"].(string); !ok || url == "" {
		t.Fatalf("thumbnail_url = %v", meta["thumbnail_url"])
	}

	// Drop the live session, then restore it from the snapshot.
	f.manager.Remove(id)
	rec = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/snapshot/restore", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("restore status = %d: %s", rec.Code, rec.Body.String())
	}
	st := f.sessionState(t, id)
	if st.SessionID != id || st.Uploaded == nil {
		t.Fatalf("restored state = %+v", st)
	}

	rec = f.do(t, http.MethodDelete, "/v1/sessions/"+id+"/snapshot", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/snapshot/restore", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("restore after clear status = %d, want 404", rec.Code)
	}
}

func TestRestoreRejectsCorruptSnapshot(t *testing.T) {
	f := newFixture(t)
	if err := f.store.Save(context.Background(), snapshot.Record{SessionID: "broken", Data: []byte("{"), UpdatedAt: time.Now()}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	rec := f.do(t, http.MethodPost, "/v1/sessions/broken/snapshot/restore", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestResizeEndpoint(t *testing.T) {
	f := newFixture(t)
	id := f.createUploadedSession(t)

	rec := f.do(t, http.MethodPost, "/v1/sessions/"+id+"/bases/active/resize", handlers.ResizeRequest{Size: "9:16"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("resize status = %d: %s", rec.Code, rec.Body.String())
	}
	st := f.sessionState(t, id)
	rv := domain.FindResize(st.Bases[0].ResizedVersions, "9:16")
	if rv == nil || rv.Status != domain.ResizeCompleted {
		t.Fatalf("resize slot = %+v, want completed", rv)
	}
}

func TestExportZip(t *testing.T) {
	f := newFixture(t)
	id := f.createUploadedSession(t)
	f.do(t, http.MethodPost, "/v1/sessions/"+id+"/edits", handlers.EditRequest{Prompt: "v2"})

	rec := f.do(t, http.MethodGet, "/v1/sessions/"+id+"/export.zip", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("content type = %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("empty archive")
	}
}

func TestReferenceEndpoints(t *testing.T) {
	f := newFixture(t)
	id := f.createUploadedSession(t)

	payload := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("ref-bytes"))
	rec := f.do(t, http.MethodPost, "/v1/sessions/"+id+"/references", handlers.ReferenceRequest{Image: payload, Type: "background"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add reference status = %d: %s", rec.Code, rec.Body.String())
	}
	refID := decodeJSON[map[string]string](t, rec)["reference_id"]

	rec = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/references/select", handlers.SelectReferenceRequest{Tool: "background", ReferenceID: refID})
	if rec.Code != http.StatusOK {
		t.Fatalf("select reference status = %d: %s", rec.Code, rec.Body.String())
	}
	st := f.sessionState(t, id)
	if st.Tool.SelectedReferences["background"] != refID {
		t.Fatalf("selected references = %v", st.Tool.SelectedReferences)
	}

	rec = f.do(t, http.MethodDelete, "/v1/sessions/"+id+"/references/"+refID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove reference status = %d", rec.Code)
	}
	st = f.sessionState(t, id)
	if len(st.ReferenceImages) != 0 || len(st.Tool.SelectedReferences) != 0 {
		t.Fatal("reference removal left selections behind")
	}

	rec = f.do(t, http.MethodPost, "/v1/sessions/"+id+"/references", handlers.ReferenceRequest{Image: payload, Type: "bogus"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad type status = %d, want 400", rec.Code)
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	f := newFixture(t)
	for _, route := range []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/v1/sessions/nope", nil},
		{http.MethodPost, "/v1/sessions/nope/edits", handlers.EditRequest{Prompt: "x"}},
		{http.MethodPost, "/v1/sessions/nope/comparison/enter", nil},
	} {
		rec := f.do(t, route.method, route.path, route.body)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s %s status = %d, want 404", route.method, route.path, rec.Code)
		}
	}
}
