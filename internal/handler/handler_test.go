package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xxxsen/studynote/internal/config"
	"github.com/xxxsen/studynote/internal/filestore"
	"github.com/xxxsen/studynote/internal/middleware"
	"github.com/xxxsen/studynote/internal/pkg/jwt"
	"github.com/xxxsen/studynote/internal/pkg/password"
	"github.com/xxxsen/studynote/internal/repo"
	"github.com/xxxsen/studynote/internal/service"
	"github.com/xxxsen/studynote/internal/testutil"
)

const testNoteMaxSize = 64 * 1024

type testServer struct {
	engine    *gin.Engine
	issuer    *jwt.Issuer
	uploadDir string
}

type envelope struct {
	Code uint32          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, rateLimit time.Duration) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	conn := testutil.OpenTestDB(t)
	uploadDir := t.TempDir()
	store, err := filestore.NewLocal(uploadDir)
	require.NoError(t, err)

	issuer := jwt.NewIssuer([]byte("handler-secret"), time.Hour)
	uploads := service.NewUploadService(store)
	avatarPolicy := service.NewUploadPolicy(service.AvatarNamespace, config.UploadPolicyConfig{
		MaxSize:      testNoteMaxSize,
		AllowedTypes: config.DefaultAvatarTypes,
	})
	notePolicy := service.NewUploadPolicy(service.NoteNamespace, config.UploadPolicyConfig{
		MaxSize:     testNoteMaxSize,
		AllowedExts: config.DefaultNoteExts,
	})
	authSvc := service.NewAuthService(repo.NewUserRepo(conn), issuer, password.NewHasher(bcrypt.MinCost), uploads, service.AuthConfig{
		DefaultAvatar: config.DefaultAvatar,
		AvatarPolicy:  avatarPolicy,
	})
	noteSvc := service.NewNoteService(repo.NewNoteRepo(conn), repo.NewPendingDeletionRepo(conn), uploads, store, notePolicy)

	engine := gin.New()
	engine.Use(Middlewares(middleware.NewOriginPolicy(nil))...)
	RegisterRoutes(&engine.RouterGroup, RouterDeps{
		Auth:          NewAuthHandler(authSvc, avatarPolicy.MaxSize),
		Notes:         NewNoteHandler(noteSvc, notePolicy.MaxSize),
		Tokens:        issuer,
		AuthRateLimit: rateLimit,
		UploadDir:     uploadDir,
	})
	return &testServer{engine: engine, issuer: issuer, uploadDir: uploadDir}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) postJSON(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return s.do(t, req)
}

func (s *testServer) authed(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return s.do(t, req)
}

type authResult struct {
	Token string                 `json:"token"`
	User  map[string]interface{} `json:"user"`
}

func (s *testServer) register(t *testing.T, username, email, pass string) authResult {
	t.Helper()
	rec := s.postJSON(t, "/api/auth/register", map[string]string{"username": username, "email": email, "password": pass})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out authResult
	decodeData(t, rec, &out)
	return out
}

type formFileSpec struct {
	field       string
	name        string
	contentType string
	body        []byte
}

func multipartRequest(t *testing.T, path, token string, fields map[string]string, file *formFileSpec) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+file.field+`"; filename="`+file.name+`"`)
		h.Set("Content-Type", file.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file.body)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

type noteView struct {
	ID       string   `json:"id"`
	UserID   string   `json:"user_id"`
	Title    string   `json:"title"`
	Subject  string   `json:"subject"`
	Tags     []string `json:"tags"`
	FileKey  string   `json:"file_key"`
	FileURL  string   `json:"file_url"`
	FileName string   `json:"file_name"`
}

func (s *testServer) uploadNote(t *testing.T, token, title, tags string) noteView {
	t.Helper()
	req := multipartRequest(t, "/api/notes", token, map[string]string{
		"title":   title,
		"subject": "Math",
		"tags":    tags,
	}, &formFileSpec{field: "file", name: "algebra.pdf", contentType: "application/pdf", body: []byte("%PDF-1.4 notes")})
	rec := s.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var note noteView
	decodeData(t, rec, &note)
	return note
}

func TestRegisterLoginMe(t *testing.T) {
	s := newTestServer(t, 0)

	registered := s.register(t, "alice", "a@x.com", "secret1")
	require.NotEmpty(t, registered.Token)
	require.NotContains(t, registered.User, "password")
	require.NotContains(t, registered.User, "password_hash")
	require.Equal(t, "alice", registered.User["username"])

	rec := s.postJSON(t, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var logged authResult
	decodeData(t, rec, &logged)
	userID, err := s.issuer.Verify(logged.Token)
	require.NoError(t, err)
	require.Equal(t, registered.User["id"], userID)

	rec = s.authed(t, http.MethodGet, "/api/auth/me", logged.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "password")
	var me map[string]interface{}
	decodeData(t, rec, &me)
	require.Equal(t, "a@x.com", me["email"])
}

func TestRegisterErrors(t *testing.T) {
	s := newTestServer(t, 0)
	s.register(t, "alice", "a@x.com", "secret1")

	rec := s.postJSON(t, "/api/auth/register", map[string]string{"username": "alice2", "email": "a@x.com", "password": "secret2"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = s.postJSON(t, "/api/auth/register", map[string]string{"email": "b@x.com", "password": "secret2"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.postJSON(t, "/api/auth/register", map[string]string{"username": "carol", "email": "c@x.com", "password": strings.Repeat("p", 80)})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusBadRequest, s.do(t, req).Code)
}

func TestLoginInvalidCredentials(t *testing.T) {
	s := newTestServer(t, 0)
	s.register(t, "alice", "a@x.com", "secret1")

	wrong := s.postJSON(t, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "bad-pass"})
	unknown := s.postJSON(t, "/api/auth/login", map[string]string{"email": "nobody@x.com", "password": "bad-pass"})
	require.Equal(t, http.StatusBadRequest, wrong.Code)
	require.Equal(t, wrong.Code, unknown.Code)
	require.Equal(t, decodeEnvelope(t, wrong), decodeEnvelope(t, unknown))
}

func TestAuthRateLimit(t *testing.T) {
	s := newTestServer(t, time.Minute)
	s.register(t, "alice", "a@x.com", "secret1")
	rec := s.postJSON(t, "/api/auth/register", map[string]string{"username": "bob", "email": "b@x.com", "password": "secret1"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAuthGate(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/notes/mine", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.authed(t, http.MethodGet, "/api/notes/mine", "garbage")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	expired := jwt.NewIssuer([]byte("handler-secret"), time.Hour, jwt.WithClock(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}))
	token, err := expired.Issue("u1")
	require.NoError(t, err)
	rec = s.authed(t, http.MethodGet, "/api/notes/mine", token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeForDeletedUser(t *testing.T) {
	s := newTestServer(t, 0)
	token, err := s.issuer.Issue("ghost")
	require.NoError(t, err)
	rec := s.authed(t, http.MethodGet, "/api/auth/me", token)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNoteLifecycle(t *testing.T) {
	s := newTestServer(t, 0)
	alice := s.register(t, "alice", "a@x.com", "secret1")
	bob := s.register(t, "bob", "b@x.com", "secret1")

	note := s.uploadNote(t, alice.Token, "Algebra", "math, algebra")
	require.Equal(t, []string{"math", "algebra"}, note.Tags)
	require.Equal(t, alice.User["id"], note.UserID)
	require.True(t, strings.HasPrefix(note.FileURL, "/uploads/notes/"))

	rec := s.authed(t, http.MethodGet, "/api/notes/mine", alice.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []noteView
	decodeData(t, rec, &mine)
	require.Len(t, mine, 1)

	rec = s.authed(t, http.MethodGet, "/api/notes/mine", bob.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var bobs []noteView
	decodeData(t, rec, &bobs)
	require.Empty(t, bobs)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, note.FileURL, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.authed(t, http.MethodGet, "/api/notes/download/"+note.ID, bob.Token)
	require.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.authed(t, http.MethodGet, "/api/notes/"+note.ID, bob.Token)
	require.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.authed(t, http.MethodDelete, "/api/notes/"+note.ID, bob.Token)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.authed(t, http.MethodGet, "/api/notes/download/"+note.ID, alice.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "%PDF-1.4 notes", rec.Body.String())
	require.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	require.Contains(t, rec.Header().Get("Content-Disposition"), "algebra.pdf")

	rec = s.authed(t, http.MethodGet, "/api/notes/"+note.ID, alice.Token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.authed(t, http.MethodDelete, "/api/notes/"+note.ID, alice.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err := os.Stat(filepath.Join(s.uploadDir, filepath.FromSlash(note.FileKey)))
	require.True(t, os.IsNotExist(err))

	rec = s.authed(t, http.MethodDelete, "/api/notes/"+note.ID, alice.Token)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.authed(t, http.MethodGet, "/api/notes/download/"+note.ID, alice.Token)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteNoteAfterFileRemoved(t *testing.T) {
	s := newTestServer(t, 0)
	alice := s.register(t, "alice", "a@x.com", "secret1")
	note := s.uploadNote(t, alice.Token, "Algebra", "")

	require.NoError(t, os.Remove(filepath.Join(s.uploadDir, filepath.FromSlash(note.FileKey))))

	rec := s.authed(t, http.MethodGet, "/api/notes/download/"+note.ID, alice.Token)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.authed(t, http.MethodDelete, "/api/notes/"+note.ID, alice.Token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.authed(t, http.MethodGet, "/api/notes/mine", alice.Token)
	var mine []noteView
	decodeData(t, rec, &mine)
	require.Empty(t, mine)
}

func TestUploadNoteRejections(t *testing.T) {
	s := newTestServer(t, 0)
	alice := s.register(t, "alice", "a@x.com", "secret1")

	rec := s.do(t, multipartRequest(t, "/api/notes", alice.Token, map[string]string{"title": "x"}, nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, multipartRequest(t, "/api/notes", alice.Token, nil, &formFileSpec{
		field: "file", name: "run.exe", contentType: "application/octet-stream", body: []byte("MZ"),
	}))
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = s.do(t, multipartRequest(t, "/api/notes", alice.Token, nil, &formFileSpec{
		field: "file", name: "big.pdf", contentType: "application/pdf", body: bytes.Repeat([]byte("x"), testNoteMaxSize+1),
	}))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	entries, err := os.ReadDir(s.uploadDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestUpdateAvatar(t *testing.T) {
	s := newTestServer(t, 0)
	alice := s.register(t, "alice", "a@x.com", "secret1")
	require.Equal(t, config.DefaultAvatar, alice.User["avatar"])

	rec := s.do(t, multipartRequest(t, "/api/auth/avatar", alice.Token, nil, nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, multipartRequest(t, "/api/auth/avatar", alice.Token, nil, &formFileSpec{
		field: "avatar", name: "huge.png", contentType: "image/png", body: bytes.Repeat([]byte("x"), testNoteMaxSize+1),
	}))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	entries, err := os.ReadDir(s.uploadDir)
	require.NoError(t, err)
	require.Empty(t, entries)

	rec = s.do(t, multipartRequest(t, "/api/auth/avatar", alice.Token, nil, &formFileSpec{
		field: "avatar", name: "me.png", contentType: "image/png", body: []byte("\x89PNG"),
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out map[string]string
	decodeData(t, rec, &out)
	require.True(t, strings.HasPrefix(out["avatar"], "/uploads/avatars/"))

	rec = s.authed(t, http.MethodGet, "/api/auth/me", alice.Token)
	var me map[string]interface{}
	decodeData(t, rec, &me)
	require.Equal(t, out["avatar"], me["avatar"])

	rec = s.do(t, multipartRequest(t, "/api/auth/avatar", alice.Token, nil, &formFileSpec{
		field: "avatar", name: "me.pdf", contentType: "application/pdf", body: []byte("%PDF"),
	}))
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}
