package web

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-assistant/internal/catalog"
	"study-assistant/internal/models"
	"study-assistant/internal/parser"
)

type fakePipeline struct {
	indexed  []string
	sources  []string
	handles  []models.IndexHandle
	resp     *models.PromptResponse
	queryErr error
	indexErr error
}

func (f *fakePipeline) SplitText(text string) []string {
	return parser.Chunk(text)
}

func (f *fakePipeline) ChunkAndIndex(_ context.Context, text, sourceID string) (models.IndexHandle, error) {
	if f.indexErr != nil {
		return models.IndexHandle{}, f.indexErr
	}
	f.indexed = append(f.indexed, text)
	f.sources = append(f.sources, sourceID)
	return models.IndexHandle{SourceID: sourceID, Location: "loc/" + sourceID}, nil
}

func (f *fakePipeline) Query(_ context.Context, handle models.IndexHandle, question string, _ int) (*models.PromptResponse, error) {
	f.handles = append(f.handles, handle)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	resp := *f.resp
	resp.Query = question
	return &resp, nil
}

type memRecorder struct {
	saved []catalog.Ingestion
}

func (m *memRecorder) Save(ing catalog.Ingestion) error {
	m.saved = append(m.saved, ing)
	return nil
}

// client drives the handler while carrying the session cookie.
type client struct {
	t       *testing.T
	handler http.Handler
	cookies []*http.Cookie
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	if set := rec.Result().Cookies(); len(set) > 0 {
		c.cookies = set
	}
	return rec
}

func (c *client) get() string {
	rec := c.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(c.t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func (c *client) upload(name, content string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(c.t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(c.t, err)
	require.NoError(c.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func (c *client) ask(question string) *httptest.ResponseRecorder {
	form := url.Values{"question": {question}}
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func TestIndexAsksForUpload(t *testing.T) {
	s := NewServer(&fakePipeline{})
	c := &client{t: t, handler: s.Handler()}

	body := c.get()
	assert.Contains(t, body, uploadNotice)
	assert.NotContains(t, body, `action="/ask"`)
	require.Len(t, c.cookies, 1)
	assert.Equal(t, sessionCookie, c.cookies[0].Name)
}

func TestUploadAndAsk(t *testing.T) {
	p := &fakePipeline{resp: &models.PromptResponse{Content: "Cats are mammals.", Context: "Cats are mammals."}}
	rec := &memRecorder{}
	s := NewServer(p, WithRecorder(rec, "chromem"), WithTopK(2))
	c := &client{t: t, handler: s.Handler()}
	c.get()

	res := c.upload("notes.txt", "Cats are mammals.\r\n\r\nDogs bark.")
	assert.Equal(t, http.StatusSeeOther, res.Code)
	require.Len(t, p.indexed, 1)
	assert.Equal(t, "Cats are mammals.\n\nDogs bark.", p.indexed[0])

	require.Len(t, rec.saved, 1)
	assert.Equal(t, "notes.txt", rec.saved[0].Name)
	assert.Equal(t, "chromem", rec.saved[0].Store)
	assert.Equal(t, 2, rec.saved[0].ChunkCount)
	assert.Equal(t, p.sources[0], rec.saved[0].SourceID)

	body := c.get()
	assert.Contains(t, body, "File uploaded and processed successfully!")
	assert.Contains(t, body, "notes.txt")
	assert.Contains(t, body, `action="/ask"`)

	c.ask("What are cats?")
	require.Len(t, p.handles, 1)
	assert.Equal(t, p.sources[0], p.handles[0].SourceID)

	body = c.get()
	assert.Contains(t, body, "What are cats?")
	assert.Contains(t, body, "Cats are mammals.")
	assert.NotContains(t, body, "File uploaded")
}

func TestSessionsAreIsolated(t *testing.T) {
	p := &fakePipeline{resp: &models.PromptResponse{Content: "ok", Context: "c"}}
	s := NewServer(p)
	alice := &client{t: t, handler: s.Handler()}
	bob := &client{t: t, handler: s.Handler()}
	alice.get()
	bob.get()

	alice.upload("a.txt", "Alpha.")
	bob.upload("b.txt", "Beta.")
	alice.ask("first?")
	bob.ask("second?")

	require.Len(t, p.handles, 2)
	assert.Equal(t, p.sources[0], p.handles[0].SourceID)
	assert.Equal(t, p.sources[1], p.handles[1].SourceID)
	assert.NotEqual(t, p.sources[0], p.sources[1])

	assert.NotContains(t, alice.get(), "second?")
}

func TestAskWithoutUpload(t *testing.T) {
	p := &fakePipeline{}
	s := NewServer(p)
	c := &client{t: t, handler: s.Handler()}
	c.get()

	c.ask("Anything?")
	assert.Empty(t, p.handles)
	body := c.get()
	assert.Contains(t, body, uploadNotice)
	assert.NotContains(t, body, "Anything?")
}

func TestEmptyContextNotice(t *testing.T) {
	p := &fakePipeline{resp: &models.PromptResponse{Content: "Not in the notes."}}
	s := NewServer(p)
	c := &client{t: t, handler: s.Handler()}
	c.get()
	c.upload("n.txt", "Some text.")
	c.ask("Unrelated?")

	assert.Contains(t, c.get(), models.NoContextNotice)
}

func TestQueryError(t *testing.T) {
	p := &fakePipeline{queryErr: errors.New("model offline")}
	s := NewServer(p)
	c := &client{t: t, handler: s.Handler()}
	c.get()
	c.upload("n.txt", "Some text.")
	c.ask("Hello?")

	body := c.get()
	assert.Contains(t, body, "model offline")
	assert.Contains(t, body, "Hello?")
}

func TestUploadErrors(t *testing.T) {
	p := &fakePipeline{}
	s := NewServer(p)
	c := &client{t: t, handler: s.Handler()}
	c.get()

	c.upload("slides.key", "whatever")
	assert.Contains(t, c.get(), "Error processing file")

	p.indexErr = models.ErrEmptyCorpus
	c.upload("empty.txt", "\n\n  \n\n")
	assert.Contains(t, c.get(), models.ErrEmptyCorpus.Error())
	assert.Empty(t, p.indexed)
}

func TestUploadTooLarge(t *testing.T) {
	p := &fakePipeline{}
	s := NewServer(p, WithMaxUploadMB(1))
	c := &client{t: t, handler: s.Handler()}
	c.get()

	c.upload("big.txt", strings.Repeat("a", 2<<20))
	assert.Empty(t, p.indexed)
	assert.Contains(t, c.get(), "Error processing file")
}

func TestReset(t *testing.T) {
	p := &fakePipeline{resp: &models.PromptResponse{Content: "ok", Context: "c"}}
	s := NewServer(p)
	c := &client{t: t, handler: s.Handler()}
	c.get()
	c.upload("n.txt", "Some text.")
	c.ask("Q?")

	c.do(httptest.NewRequest(http.MethodPost, "/reset", nil))
	body := c.get()
	assert.NotContains(t, body, "Q?")
	assert.Contains(t, body, uploadNotice)
}
