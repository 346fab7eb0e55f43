package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immihelp/formapi/internal/api"
	"github.com/immihelp/formapi/internal/apperr"
	"github.com/immihelp/formapi/internal/data/store"
	"github.com/immihelp/formapi/internal/docstore"
	"github.com/immihelp/formapi/internal/formcfg"
	"github.com/immihelp/formapi/internal/formfill"
)

type fakeChat struct {
	answer string
	err    error
	calls  int
}

func (f *fakeChat) Answer(ctx context.Context, question string, history []string) (string, error) {
	f.calls++
	return f.answer, f.err
}

type fakeFillService struct {
	result formfill.Result
	err    error
}

func (f *fakeFillService) FillForm(ctx context.Context, sessionID, formType string) (formfill.Result, error) {
	return f.result, f.err
}

type testEnv struct {
	handlers  *Handlers
	chat      *fakeChat
	fill      *fakeFillService
	documents *docstore.Store
	uploads   string
	filled    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	uploads := filepath.Join(t.TempDir(), "uploads")
	filled := filepath.Join(t.TempDir(), "filled")

	chat := &fakeChat{answer: "the answer"}
	fill := &fakeFillService{}
	documents := docstore.NewStoreWithExtractor(uploads, filled, func(path string) string { return "text" })
	forms := formcfg.NewLoader(filepath.Join(t.TempDir(), "no_configs"))

	return &testEnv{
		handlers:  NewHandlers(chat, store.NewInMemoryChatStore(), documents, forms, fill),
		chat:      chat,
		fill:      fill,
		documents: documents,
		uploads:   uploads,
		filled:    filled,
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestChatHandler_Answer(t *testing.T) {
	env := newTestEnv(t)

	rec := postJSON(t, env.handlers.ChatHandler, "/api/chat", api.ChatRequest{
		Message: "What is an EAD?", SessionID: "sess-1",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp api.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "the answer", resp.Reply)
	assert.Empty(t, resp.ActionNeeded)
}

func TestChatHandler_FillFormCommandSkipsModel(t *testing.T) {
	env := newTestEnv(t)

	rec := postJSON(t, env.handlers.ChatHandler, "/api/chat", api.ChatRequest{
		Message: "Fill form i-765", SessionID: "sess-1",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp api.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "trigger_fill_form", resp.ActionNeeded)
	assert.Zero(t, env.chat.calls, "command messages must not reach the model")
}

func TestChatHandler_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	rec := postJSON(t, env.handlers.ChatHandler, "/api/chat", api.ChatRequest{Message: "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandler_ModelDown(t *testing.T) {
	env := newTestEnv(t)
	env.chat.err = apperr.New(apperr.ModelUnavailable, "The language model is currently unavailable.")

	rec := postJSON(t, env.handlers.ChatHandler, "/api/chat", api.ChatRequest{
		Message: "question", SessionID: "sess-1",
	})

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "MODEL_UNAVAILABLE", resp.Kind)
}

func multipartUpload(t *testing.T, sessionID, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("session_id", sessionID))
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadHandler_SavesFile(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.handlers.UploadHandler(rec, multipartUpload(t, "sess-1", "passport.txt", "passport text"))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp api.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "passport.txt", resp.Filename)

	saved, err := os.ReadFile(filepath.Join(env.uploads, "sess-1", "passport.txt"))
	require.NoError(t, err)
	assert.Equal(t, "passport text", string(saved))
}

func TestUploadHandler_DisallowedExtension(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.handlers.UploadHandler(rec, multipartUpload(t, "sess-1", "malware.exe", "nope"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_FILE", resp.Kind)

	_, err := os.Stat(filepath.Join(env.uploads, "sess-1", "malware.exe"))
	assert.True(t, os.IsNotExist(err), "rejected files must not be written")
}

func TestUploadHandler_MissingSession(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.handlers.UploadHandler(rec, multipartUpload(t, "", "doc.txt", "text"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFillFormHandler_StreamsAndCleansUp(t *testing.T) {
	env := newTestEnv(t)

	// session has one upload and one generated output on disk
	uploadDir := filepath.Join(env.uploads, "sess-1")
	require.NoError(t, os.MkdirAll(uploadDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "doc.txt"), []byte("text"), 0o640))

	outDir := filepath.Join(env.filled, "sess-1")
	require.NoError(t, os.MkdirAll(outDir, 0o750))
	outputPath := filepath.Join(outDir, "sess-1-filled-i-765-token.pdf")
	require.NoError(t, os.WriteFile(outputPath, []byte("%PDF-fake"), 0o640))

	env.fill.result = formfill.Result{
		OutputPath:       outputPath,
		DownloadFilename: "filled_i-765_sess-1.pdf",
	}

	rec := postJSON(t, env.handlers.FillFormHandler, "/api/fill-form", api.FillFormRequest{
		FormType: "i-765", SessionID: "sess-1",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "filled_i-765_sess-1.pdf")
	assert.Equal(t, "%PDF-fake", rec.Body.String())

	_, err := os.Stat(outputPath)
	assert.True(t, os.IsNotExist(err), "delivered output must be deleted")
	_, err = os.Stat(uploadDir)
	assert.True(t, os.IsNotExist(err), "session uploads must be purged after delivery")
}

func TestFillFormHandler_UnknownForm(t *testing.T) {
	env := newTestEnv(t)
	env.fill.err = apperr.Newf(apperr.ConfigNotFound, "Configuration for form type %q not found.", "i-999")

	rec := postJSON(t, env.handlers.FillFormHandler, "/api/fill-form", api.FillFormRequest{
		FormType: "i-999", SessionID: "sess-1",
	})

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CONFIG_NOT_FOUND", resp.Kind)
}

func TestFillFormHandler_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	rec := postJSON(t, env.handlers.FillFormHandler, "/api/fill-form", api.FillFormRequest{FormType: "i-765"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListFormsHandler_EmptyDirectory(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/forms", nil)
	rec := httptest.NewRecorder()
	env.handlers.ListFormsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp api.ListFormsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Forms)
}

func TestIsFillFormCommand(t *testing.T) {
	assert.True(t, isFillFormCommand("fill form i-765"))
	assert.True(t, isFillFormCommand("  Fill Form"))
	assert.False(t, isFillFormCommand("how do I fill out a form?"))
	assert.False(t, isFillFormCommand(strings.Repeat("x", 10)))
}
