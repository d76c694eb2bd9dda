package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/suPer8Hu/w3a11y-artisan/internal/app"
	"github.com/suPer8Hu/w3a11y-artisan/internal/config"
	"github.com/suPer8Hu/w3a11y-artisan/internal/db"
	"github.com/suPer8Hu/w3a11y-artisan/internal/httpapi/middleware"
	"github.com/suPer8Hu/w3a11y-artisan/internal/media"
)

const testSecret = "test-secret"

// pngPayload sniffs as image/png and clears the minimum size check.
var pngPayload = func() string {
	raw := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{7}, 200)...)
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
}()

type fakeAI struct {
	mu        sync.Mutex
	noCredits bool
}

func (f *fakeAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer good-key" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
		return
	}
	if f.noCredits && r.URL.Path != "/artisan/credits" {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":"no credits"}`))
		return
	}

	switch r.URL.Path {
	case "/artisan/generate":
		_, _ = w.Write([]byte(`{"success":true,"image":"aGVsbG8=","mime_type":"image/png","credits_used":1,"credits_remaining":9}`))
	case "/artisan/credits":
		_, _ = w.Write([]byte(`{"success":true,"available_credits":9,"used_credits":1,"plan":"pro"}`))
	case "/alttext/config":
		_, _ = w.Write([]byte(`{"success":true,"batch_size":4}`))
	case "/alttext/generate":
		var req struct {
			Mode   string `json:"mode"`
			Images []struct {
				ID int64 `json:"id"`
			} `json:"images"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Mode == "single" {
			_, _ = w.Write([]byte(`{"success":true,"alt_text":"A lighthouse on a cliff","credits_used":1}`))
			return
		}
		results := make([]map[string]any, 0, len(req.Images))
		for _, img := range req.Images {
			results = append(results, map[string]any{"id": img.ID, "success": true, "alt_text": fmt.Sprintf("Alt %d", img.ID)})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "results": results, "credits_used": len(results)})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type fakeQueue struct{ sessions []string }

func (q *fakeQueue) PublishSession(_ context.Context, sessionID string, _ uint64) error {
	q.sessions = append(q.sessions, sessionID)
	return nil
}

type env struct {
	router *gin.Engine
	svc    *app.Services
	cfg    config.Config
	ai     *fakeAI
	queue  *fakeQueue
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := gorm.Open(gormsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ai := &fakeAI{}
	srv := httptest.NewServer(ai)
	t.Cleanup(srv.Close)

	cfg := config.Config{
		Env:           "test",
		JWTSecret:     testSecret,
		RemoteBaseURL: srv.URL,
		RemoteTimeout: 5 * time.Second,
		BulkPollDelay: time.Second,
		UploadDir:     t.TempDir(),
		UploadBaseURL: "https://example.test/uploads",
	}
	svc := app.NewServices(gdb, rdb, cfg, nil)
	require.NoError(t, svc.Settings.SetAPIKey(context.Background(), "good-key"))

	q := &fakeQueue{}
	return &env{router: NewRouter(svc, cfg, q, nil), svc: svc, cfg: cfg, ai: ai, queue: q}
}

func token(t *testing.T, uid uint64, caps ...string) string {
	t.Helper()
	if len(caps) == 0 {
		caps = []string{middleware.CapUploadFiles}
	}
	tok, err := middleware.IssueToken(testSecret, uid, caps, time.Hour)
	require.NoError(t, err)
	return tok
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type errorData struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *env) form(t *testing.T, tok string, values url.Values) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/wp-admin/admin-ajax.php", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return e.do(t, req)
}

func (e *env) json(t *testing.T, tok string, body map[string]any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/ajax", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)
	return e.do(t, req)
}

func (e *env) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	var out envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestPing(t *testing.T) {
	e := newEnv(t)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestAjax_AuthAndDispatch(t *testing.T) {
	e := newEnv(t)

	w, out := e.form(t, "", url.Values{"action": {"w3a11y_get_notifications"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, out.Success)
	assert.Equal(t, "AUTH_ERROR", decode[errorData](t, out.Data).Code)

	w, out = e.form(t, token(t, 1), url.Values{"action": {"w3a11y_nope"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid action", decode[errorData](t, out.Data).Message)

	w, _ = e.form(t, token(t, 1), url.Values{"action": {"w3a11y_validate_api_key"}, "api_key": {"x"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = e.form(t, token(t, 1, "read"), url.Values{"action": {"w3a11y_get_notifications"}})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGenerate_ValidationAndSuccess(t *testing.T) {
	e := newEnv(t)
	tok := token(t, 2)

	w, out := e.form(t, tok, url.Values{"action": {"w3a11y_artisan_generate"}, "prompt": {"a fox"}, "style": {"cubism"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[errorData](t, out.Data).Message, "Style")

	w, out = e.json(t, tok, map[string]any{"action": "w3a11y_artisan_generate", "prompt": "a fox", "quality": "hd"})
	require.Equal(t, http.StatusOK, w.Code, string(out.Data))
	assert.True(t, out.Success)
	assert.Equal(t, "aGVsbG8=", decode[map[string]any](t, out.Data)["image"])

	_, out = e.form(t, tok, url.Values{"action": {"w3a11y_get_prompt_history"}})
	hist := decode[map[string]any](t, out.Data)
	assert.EqualValues(t, 1, hist["count"])
}

func TestGenerate_NoCreditsRaisesNotice(t *testing.T) {
	e := newEnv(t)
	e.ai.noCredits = true
	tok := token(t, 3)

	w, out := e.form(t, tok, url.Values{"action": {"w3a11y_artisan_generate"}, "prompt": {"a fox"}})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "CREDIT_ERROR", decode[errorData](t, out.Data).Code)

	_, out = e.form(t, tok, url.Values{"action": {"w3a11y_get_notifications"}})
	notes := decode[map[string][]map[string]any](t, out.Data)["notifications"]
	require.Len(t, notes, 1)
	assert.Equal(t, "low_credits", notes[0]["id"])
}

func seedImages(t *testing.T, svc *app.Services, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, svc.Media.Create(context.Background(), &media.Attachment{
			ParentID: 1,
			Title:    fmt.Sprintf("img-%d", i),
			URL:      fmt.Sprintf("https://example.test/img-%d.jpg", i),
			MimeType: "image/jpeg",
		}))
	}
}

func TestBulkAltText_Lifecycle(t *testing.T) {
	e := newEnv(t)
	seedImages(t, e.svc, 6)
	tok := token(t, 4)

	w, out := e.form(t, tok, url.Values{"action": {"w3a11y_bulk_alttext"}, "sub_action": {"start"}, "only_attached": {"true"}})
	require.Equal(t, http.StatusOK, w.Code, string(out.Data))
	start := decode[map[string]any](t, out.Data)
	sid := start["session_id"].(string)
	assert.EqualValues(t, 6, start["total_images"])
	assert.EqualValues(t, 2, start["total_batches"])

	w, _ = e.form(t, token(t, 99), url.Values{"action": {"w3a11y_bulk_alttext"}, "sub_action": {"status"}, "session_id": {sid}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var last map[string]any
	for i := 0; i < 2; i++ {
		w, out = e.form(t, tok, url.Values{"action": {"w3a11y_bulk_alttext"}, "sub_action": {"process_batch"}, "session_id": {sid}})
		require.Equal(t, http.StatusOK, w.Code, string(out.Data))
		last = decode[map[string]any](t, out.Data)
	}
	assert.Equal(t, "completed", last["status"])
	assert.EqualValues(t, 6, last["processed"])

	_, out = e.form(t, tok, url.Values{"action": {"w3a11y_get_bulk_stats"}})
	stats := decode[map[string]any](t, out.Data)
	assert.EqualValues(t, 6, stats["with_alt"])

	w, out = e.form(t, tok, url.Values{"action": {"w3a11y_bulk_alttext"}, "sub_action": {"start"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No images found matching the selected criteria.", decode[errorData](t, out.Data).Message)
}

func TestBulkAltText_ServerDrive(t *testing.T) {
	e := newEnv(t)
	seedImages(t, e.svc, 2)

	w, out := e.json(t, token(t, 5), map[string]any{"action": "w3a11y_bulk_alttext", "sub_action": "start", "drive": "server"})
	require.Equal(t, http.StatusOK, w.Code, string(out.Data))
	sid := decode[map[string]any](t, out.Data)["session_id"]
	assert.Equal(t, []string{sid.(string)}, e.queue.sessions)
}

func TestBulkAltText_ServerResumeWithoutBrokerKeepsSessionPaused(t *testing.T) {
	e := newEnv(t)
	seedImages(t, e.svc, 6)
	tok := token(t, 8)
	bulkForm := func(sub, sid string, extra ...string) url.Values {
		v := url.Values{"action": {"w3a11y_bulk_alttext"}, "sub_action": {sub}, "session_id": {sid}}
		for i := 0; i+1 < len(extra); i += 2 {
			v.Set(extra[i], extra[i+1])
		}
		return v
	}

	_, out := e.form(t, tok, url.Values{"action": {"w3a11y_bulk_alttext"}, "sub_action": {"start"}})
	require.True(t, out.Success, string(out.Data))
	sid := decode[map[string]any](t, out.Data)["session_id"].(string)

	_, out = e.form(t, tok, bulkForm("process_batch", sid))
	require.True(t, out.Success, string(out.Data))
	_, out = e.form(t, tok, bulkForm("cancel", sid))
	require.Equal(t, "cancelled_resumable", decode[map[string]any](t, out.Data)["status"])

	e.router = NewRouter(e.svc, e.cfg, nil, nil)
	w, out := e.form(t, tok, bulkForm("resume", sid, "drive", "server"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Background processing is not available.", decode[errorData](t, out.Data).Message)

	st, err := e.svc.Bulk.Status(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, "cancelled_resumable", st.Status)
	assert.True(t, st.CanResume)

	_, out = e.form(t, tok, bulkForm("status", sid, "drive", "server"))
	assert.True(t, out.Success)
}

func TestBulkAltText_UnknownSessionIsSessionError(t *testing.T) {
	e := newEnv(t)
	for _, sid := range []string{"not-a-uuid", "0b5c8d6e-3f1a-4c2b-9d7e-1a2b3c4d5e6f"} {
		w, out := e.form(t, token(t, 9), url.Values{"action": {"w3a11y_bulk_alttext"}, "sub_action": {"status"}, "session_id": {sid}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "SESSION_ERROR", decode[errorData](t, out.Data).Code, sid)
	}
}

func TestGenerateAltText_Saves(t *testing.T) {
	e := newEnv(t)
	seedImages(t, e.svc, 1)

	w, out := e.form(t, token(t, 6), url.Values{"action": {"w3a11y_generate_alttext"}, "attachment_id": {"1"}, "save": {"true"}})
	require.Equal(t, http.StatusOK, w.Code, string(out.Data))
	assert.Equal(t, "A lighthouse on a cliff", decode[map[string]any](t, out.Data)["alt_text"])

	a, err := e.svc.Media.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "A lighthouse on a cliff", a.Alt())
}

func TestValidateAPIKey(t *testing.T) {
	e := newEnv(t)
	admin := token(t, 1, middleware.CapUploadFiles, middleware.CapManageOptions)

	w, out := e.form(t, admin, url.Values{"action": {"w3a11y_validate_api_key"}, "api_key": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_ERROR", decode[errorData](t, out.Data).Code)

	w, out = e.form(t, admin, url.Values{"action": {"w3a11y_validate_api_key"}, "api_key": {" good-key "}, "save": {"true"}})
	require.Equal(t, http.StatusOK, w.Code, string(out.Data))
	assert.Equal(t, true, decode[map[string]any](t, out.Data)["valid"])

	_, out = e.form(t, admin, url.Values{"action": {"w3a11y_get_settings"}})
	assert.Equal(t, true, decode[map[string]any](t, out.Data)["api_key_configured"])
}

func TestNotificationsAndImageHistory(t *testing.T) {
	e := newEnv(t)
	tok := token(t, 7)

	_, out := e.form(t, tok, url.Values{"action": {"w3a11y_add_notification"}, "type": {"success"}, "message": {"Saved"}})
	require.True(t, out.Success)
	id := decode[map[string]any](t, out.Data)["id"].(string)

	_, out = e.form(t, tok, url.Values{"action": {"w3a11y_dismiss_notice"}, "notice_id": {id}})
	require.True(t, out.Success)
	_, out = e.form(t, tok, url.Values{"action": {"w3a11y_get_notifications"}})
	assert.Empty(t, decode[map[string][]any](t, out.Data)["notifications"])

	for _, op := range []string{"original", "edit"} {
		_, out = e.json(t, tok, map[string]any{"action": "w3a11y_artisan_history_push", "modal_session": "m1", "image_data": pngPayload, "operation": op})
		require.True(t, out.Success, string(out.Data))
	}
	_, out = e.json(t, tok, map[string]any{"action": "w3a11y_artisan_history_undo", "modal_session": "m1"})
	require.True(t, out.Success)
	st := decode[map[string]any](t, out.Data)
	assert.Equal(t, false, st["can_undo"])
	assert.Equal(t, true, st["can_redo"])

	w, _ := e.json(t, tok, map[string]any{"action": "w3a11y_artisan_history_undo", "modal_session": "m1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
