package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clauselens/clauselens/internal/async"
	"github.com/clauselens/clauselens/internal/chat"
	"github.com/clauselens/clauselens/internal/common"
	"github.com/clauselens/clauselens/internal/embedding"
	"github.com/clauselens/clauselens/internal/entity"
	"github.com/clauselens/clauselens/internal/ingest"
	"github.com/clauselens/clauselens/internal/repository"
	"github.com/clauselens/clauselens/internal/vector"
)

// --- fakes ---

type fakeDocs struct {
	repository.DocumentRepository
	byID     map[uuid.UUID]*entity.Document
	statuses []string
}

func (f *fakeDocs) GetByID(_ context.Context, id uuid.UUID) (*entity.Document, error) {
	if d, ok := f.byID[id]; ok {
		return d, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeDocs) List(_ context.Context, _, _ int) ([]*entity.Document, error) {
	var out []*entity.Document
	for _, d := range f.byID {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeDocs) Count(_ context.Context) (int64, error) {
	return int64(len(f.byID)), nil
}

func (f *fakeDocs) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.byID[id]; !ok {
		return common.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeDocs) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	f.statuses = append(f.statuses, status)
	if d, ok := f.byID[id]; ok {
		d.Status = status
	}
	return nil
}

type fakeJobs struct {
	repository.AnalysisJobRepository
	job *entity.AnalysisJob
}

func (f *fakeJobs) LatestForDocument(_ context.Context, _ uuid.UUID) (*entity.AnalysisJob, error) {
	if f.job == nil {
		return nil, common.ErrNotFound
	}
	return f.job, nil
}

type fakeContracts struct {
	repository.ContractRepository
	contract *entity.Contract
}

func (f *fakeContracts) GetByDocument(_ context.Context, _ uuid.UUID) (*entity.Contract, error) {
	if f.contract == nil {
		return nil, common.ErrNotFound
	}
	return f.contract, nil
}

type fakeRisks struct {
	repository.RiskFlagRepository
	flags []*entity.RiskFlag
}

func (f *fakeRisks) ListByDocument(_ context.Context, _ uuid.UUID) ([]*entity.RiskFlag, error) {
	return f.flags, nil
}

type fakeChunks struct {
	repository.ChunkRepository
	rows map[uuid.UUID]*entity.Chunk
}

func (f *fakeChunks) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*entity.Chunk, error) {
	var out []*entity.Chunk
	for _, id := range ids {
		if ch, ok := f.rows[id]; ok {
			out = append(out, ch)
		}
	}
	return out, nil
}

type fakeIngestor struct {
	res ingest.IngestionResult
	err error
	req ingest.IngestRequest
}

func (f *fakeIngestor) IngestFile(_ context.Context, req ingest.IngestRequest) (ingest.IngestionResult, error) {
	f.req = req
	return f.res, f.err
}

type fakeQueue struct {
	jobs []async.Job
	err  error
}

func (f *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeQueue) Shutdown(context.Context) {}

type fakeChat struct {
	answer   *chat.Answer
	history  []*entity.ChatMessage
	err      error
	question string
}

func (f *fakeChat) Ask(_ context.Context, _ uuid.UUID, question string) (*chat.Answer, error) {
	f.question = question
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

func (f *fakeChat) History(_ context.Context, _ uuid.UUID, _ int) ([]*entity.ChatMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.history, nil
}

type fakeExporter struct {
	data []byte
	err  error
}

func (f *fakeExporter) RiskReportXLSX(context.Context) ([]byte, error) {
	return f.data, f.err
}

type fakeEngine struct {
	vec []float32
	err error
}

func (f *fakeEngine) Embed(_ context.Context, _ string, _ embedding.Task) ([]float32, error) {
	return f.vec, f.err
}

func (f *fakeEngine) EmbedBatch(_ context.Context, texts []string, _ embedding.Task) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, f.err
}

func (f *fakeEngine) Dimensions() int { return 3 }
func (f *fakeEngine) Name() string    { return "fake" }

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(context.Context) error { return f.err }

// --- harness ---

type testServer struct {
	docs     *fakeDocs
	jobs     *fakeJobs
	risks    *fakeRisks
	chunks   *fakeChunks
	ingestor *fakeIngestor
	queue    *fakeQueue
	chat     *fakeChat
	exporter *fakeExporter
	engine   *fakeEngine
	index    *vector.Index
	pinger   *fakePinger
	srv      *Server
}

func newTestServer() *testServer {
	gin.SetMode(gin.TestMode)
	ts := &testServer{
		docs:     &fakeDocs{byID: map[uuid.UUID]*entity.Document{}},
		jobs:     &fakeJobs{},
		risks:    &fakeRisks{},
		chunks:   &fakeChunks{rows: map[uuid.UUID]*entity.Chunk{}},
		ingestor: &fakeIngestor{},
		queue:    &fakeQueue{},
		chat:     &fakeChat{answer: &chat.Answer{Text: "Two years."}},
		exporter: &fakeExporter{data: []byte("PK\x03\x04workbook")},
		engine:   &fakeEngine{vec: []float32{1, 0, 0}},
		index:    vector.NewIndex(),
		pinger:   &fakePinger{},
	}
	ts.srv = New(Config{}, Deps{
		Docs:      ts.docs,
		Jobs:      ts.jobs,
		Contracts: &fakeContracts{},
		Risks:     ts.risks,
		Chunks:    ts.chunks,
		Ingestor:  ts.ingestor,
		Queue:     ts.queue,
		Chat:      ts.chat,
		Export:    ts.exporter,
		Index:     ts.index,
		Engine:    ts.engine,
		DB:        ts.pinger,
	}, nil)
	return ts
}

func (ts *testServer) addDoc(status string) *entity.Document {
	doc := &entity.Document{ID: uuid.New(), Filename: "msa.pdf", Status: status}
	ts.docs.byID[doc.ID] = doc
	return doc
}

func (ts *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(w, req)
	return w
}

func parseJSON(t *testing.T, body *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(body.Bytes(), &out); err != nil {
		t.Fatalf("parse response: %v (%s)", err, body.String())
	}
	return out
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

// --- tests ---

func TestUploadQueuesDocument(t *testing.T) {
	ts := newTestServer()
	doc := &entity.Document{ID: uuid.New(), Filename: "msa.pdf", Status: "QUEUED"}
	ts.ingestor.res = ingest.IngestionResult{Document: doc, HashHex: "abc123"}

	body, ct := multipartBody(t, "msa.pdf", []byte("AGREEMENT between parties"))
	w := ts.do(t, http.MethodPost, "/api/documents", body, ct)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := parseJSON(t, w.Body)
	if resp["success"] != true || resp["queued"] != true || resp["duplicate"] != false {
		t.Errorf("envelope = %v", resp)
	}
	if ts.ingestor.req.Filename != "msa.pdf" || len(ts.ingestor.req.Content) == 0 {
		t.Errorf("ingest request = %+v", ts.ingestor.req)
	}
	if len(ts.queue.jobs) != 1 || ts.queue.jobs[0].DocumentID != doc.ID {
		t.Errorf("queue jobs = %v", ts.queue.jobs)
	}
}

func TestUploadDuplicateSkipsQueue(t *testing.T) {
	ts := newTestServer()
	doc := &entity.Document{ID: uuid.New(), Filename: "msa.pdf", Status: "INDEXED"}
	ts.ingestor.res = ingest.IngestionResult{Document: doc, Duplicate: true}

	body, ct := multipartBody(t, "msa.pdf", []byte("same bytes"))
	w := ts.do(t, http.MethodPost, "/api/documents", body, ct)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := parseJSON(t, w.Body)
	if resp["duplicate"] != true || resp["queued"] != false {
		t.Errorf("envelope = %v", resp)
	}
	if len(ts.queue.jobs) != 0 {
		t.Errorf("duplicate upload was enqueued: %v", ts.queue.jobs)
	}
}

func TestUploadQueueFull(t *testing.T) {
	ts := newTestServer()
	doc := &entity.Document{ID: uuid.New(), Filename: "msa.pdf"}
	ts.ingestor.res = ingest.IngestionResult{Document: doc}
	ts.queue.err = async.ErrQueueFull

	body, ct := multipartBody(t, "msa.pdf", []byte("content"))
	w := ts.do(t, http.MethodPost, "/api/documents", body, ct)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	resp := parseJSON(t, w.Body)
	if resp["success"] != false || resp["document_id"] == nil {
		t.Errorf("envelope = %v", resp)
	}
}

func TestUploadRejectsBadRequests(t *testing.T) {
	ts := newTestServer()
	ts.ingestor.err = common.InvalidArgumentError("unsupported file extension: \"docx\"")

	t.Run("missing file field", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/documents", strings.NewReader("{}"), "application/json")
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("unsupported extension", func(t *testing.T) {
		body, ct := multipartBody(t, "report.docx", []byte("word doc"))
		w := ts.do(t, http.MethodPost, "/api/documents", body, ct)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("oversize upload", func(t *testing.T) {
		big := newTestServer()
		big.srv = New(Config{MaxUploadMB: 1}, Deps{
			Docs: big.docs, Jobs: big.jobs, Contracts: &fakeContracts{}, Risks: big.risks,
			Chunks: big.chunks, Ingestor: big.ingestor, Queue: big.queue, Chat: big.chat,
			Export: big.exporter, Index: big.index, Engine: big.engine, DB: big.pinger,
		}, nil)
		body, ct := multipartBody(t, "huge.pdf", bytes.Repeat([]byte("x"), 1<<20+1))
		w := big.do(t, http.MethodPost, "/api/documents", body, ct)
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", w.Code)
		}
	})
}

func TestListDocuments(t *testing.T) {
	ts := newTestServer()
	ts.addDoc("INDEXED")
	ts.addDoc("QUEUED")

	w := ts.do(t, http.MethodGet, "/api/documents", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := parseJSON(t, w.Body)
	if resp["count"].(float64) != 2 || resp["total"].(float64) != 2 {
		t.Errorf("count = %v total = %v", resp["count"], resp["total"])
	}
}

func TestGetDocument(t *testing.T) {
	ts := newTestServer()
	doc := ts.addDoc("INDEXED")
	status := "INDEXED"
	text := "full document text that must not leak into the API"
	ts.jobs.job = &entity.AnalysisJob{ID: uuid.New(), DocumentID: doc.ID, Status: &status, DocText: &text, FlagCount: 1}
	ts.risks.flags = []*entity.RiskFlag{{DocumentID: doc.ID, Severity: "high", Score: 70}}

	w := ts.do(t, http.MethodGet, "/api/documents/"+doc.ID.String(), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := parseJSON(t, w.Body)
	job := resp["job"].(map[string]any)
	if job["status"] != "INDEXED" {
		t.Errorf("job.status = %v", job["status"])
	}
	if _, leaked := job["doc_text"]; leaked {
		t.Error("job view leaks doc_text")
	}
	riskObj := resp["risk"].(map[string]any)
	if riskObj["score"].(float64) != 70 || riskObj["level"] != "high" {
		t.Errorf("risk = %v", riskObj)
	}
}

func TestGetDocumentErrors(t *testing.T) {
	ts := newTestServer()

	if w := ts.do(t, http.MethodGet, "/api/documents/not-a-uuid", nil, ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad uuid status = %d", w.Code)
	}
	if w := ts.do(t, http.MethodGet, "/api/documents/"+uuid.NewString(), nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("missing doc status = %d", w.Code)
	}
}

func TestDeleteDocumentRemovesVectors(t *testing.T) {
	ts := newTestServer()
	doc := ts.addDoc("INDEXED")
	ts.index.Upsert(uuid.New(), doc.ID, []float32{1, 0, 0})

	w := ts.do(t, http.MethodDelete, "/api/documents/"+doc.ID.String(), nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ts.index.Count() != 0 {
		t.Errorf("index still holds %d vectors", ts.index.Count())
	}
	if w := ts.do(t, http.MethodDelete, "/api/documents/"+doc.ID.String(), nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestReprocessForcesJob(t *testing.T) {
	ts := newTestServer()
	doc := ts.addDoc("FAILED")

	w := ts.do(t, http.MethodPost, "/api/documents/"+doc.ID.String()+"/reprocess", nil, "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	if len(ts.queue.jobs) != 1 || !ts.queue.jobs[0].Force {
		t.Errorf("queue jobs = %+v, want one forced job", ts.queue.jobs)
	}
	if len(ts.docs.statuses) != 1 || ts.docs.statuses[0] != "QUEUED" {
		t.Errorf("statuses = %v", ts.docs.statuses)
	}
}

func TestReprocessQueueFull(t *testing.T) {
	ts := newTestServer()
	doc := ts.addDoc("FAILED")
	ts.queue.err = async.ErrQueueFull

	w := ts.do(t, http.MethodPost, "/api/documents/"+doc.ID.String()+"/reprocess", nil, "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if len(ts.docs.statuses) != 0 {
		t.Errorf("status should not change when enqueue fails: %v", ts.docs.statuses)
	}
}

func TestDocumentRisks(t *testing.T) {
	ts := newTestServer()
	doc := ts.addDoc("ANALYZED")
	ts.risks.flags = []*entity.RiskFlag{
		{DocumentID: doc.ID, Category: "liability", Severity: "high", Score: 70},
		{DocumentID: doc.ID, Category: "renewal", Severity: "medium", Score: 45},
	}

	w := ts.do(t, http.MethodGet, "/api/documents/"+doc.ID.String()+"/risks", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := parseJSON(t, w.Body)
	if resp["count"].(float64) != 2 {
		t.Errorf("count = %v", resp["count"])
	}
	assessment := resp["assessment"].(map[string]any)
	if assessment["score"].(float64) != 83.5 || assessment["level"] != "critical" {
		t.Errorf("assessment = %v", assessment)
	}
}

func TestChatAsk(t *testing.T) {
	ts := newTestServer()
	doc := ts.addDoc("INDEXED")
	ts.chat.answer = &chat.Answer{
		Text:      "The term is two years.",
		Citations: []entity.Citation{{ChunkID: uuid.New(), Seq: 2, Score: 0.91}},
	}

	w := ts.do(t, http.MethodPost, "/api/documents/"+doc.ID.String()+"/chat",
		strings.NewReader(`{"question":"How long is the term?"}`), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := parseJSON(t, w.Body)
	if resp["answer"] != "The term is two years." {
		t.Errorf("answer = %v", resp["answer"])
	}
	if len(resp["citations"].([]any)) != 1 {
		t.Errorf("citations = %v", resp["citations"])
	}
	if ts.chat.question != "How long is the term?" {
		t.Errorf("service got question %q", ts.chat.question)
	}
}

func TestChatAskErrors(t *testing.T) {
	ts := newTestServer()
	doc := ts.addDoc("RUNNING")

	t.Run("invalid body", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/documents/"+doc.ID.String()+"/chat",
			strings.NewReader("not json"), "application/json")
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("service unavailable maps to 503", func(t *testing.T) {
		ts.chat.err = common.UnavailableError("document is still processing")
		defer func() { ts.chat.err = nil }()
		w := ts.do(t, http.MethodPost, "/api/documents/"+doc.ID.String()+"/chat",
			strings.NewReader(`{"question":"too early?"}`), "application/json")
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d", w.Code)
		}
		resp := parseJSON(t, w.Body)
		if resp["error"] != "document is still processing" {
			t.Errorf("error = %v", resp["error"])
		}
	})
}

func TestChatHistory(t *testing.T) {
	ts := newTestServer()
	doc := ts.addDoc("INDEXED")
	ts.chat.history = []*entity.ChatMessage{
		{Role: "user", Content: "Q"},
		{Role: "assistant", Content: "A"},
	}

	w := ts.do(t, http.MethodGet, "/api/documents/"+doc.ID.String()+"/chat", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := parseJSON(t, w.Body)
	if resp["count"].(float64) != 2 {
		t.Errorf("count = %v", resp["count"])
	}
}

func TestSearch(t *testing.T) {
	ts := newTestServer()
	docA := &entity.Document{ID: uuid.New(), Filename: "a.pdf"}
	docB := &entity.Document{ID: uuid.New(), Filename: "b.pdf"}
	ts.docs.byID[docA.ID] = docA
	ts.docs.byID[docB.ID] = docB

	c1, c2 := uuid.New(), uuid.New()
	ts.chunks.rows[c1] = &entity.Chunk{ID: c1, DocumentID: docA.ID, Seq: 1, Text: "Payment terms net 30."}
	ts.chunks.rows[c2] = &entity.Chunk{ID: c2, DocumentID: docB.ID, Seq: 4, Text: "Late payment interest."}
	ts.index.Upsert(c1, docA.ID, []float32{1, 0, 0})
	ts.index.Upsert(c2, docB.ID, []float32{0.6, 0.8, 0})

	w := ts.do(t, http.MethodGet, "/api/search?q=payment+terms", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := parseJSON(t, w.Body)
	results := resp["results"].([]any)
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	first := results[0].(map[string]any)
	second := results[1].(map[string]any)
	if first["filename"] != "a.pdf" {
		t.Errorf("top result = %v", first["filename"])
	}
	if first["score"].(float64) <= second["score"].(float64) {
		t.Errorf("results not ranked: %v vs %v", first["score"], second["score"])
	}
	if first["snippet"] != "Payment terms net 30." {
		t.Errorf("snippet = %v", first["snippet"])
	}
}

func TestSearchErrors(t *testing.T) {
	ts := newTestServer()

	if w := ts.do(t, http.MethodGet, "/api/search", nil, ""); w.Code != http.StatusBadRequest {
		t.Errorf("missing q status = %d", w.Code)
	}

	ts.engine.err = errors.New("quota exhausted")
	if w := ts.do(t, http.MethodGet, "/api/search?q=terms", nil, ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("engine failure status = %d, want 503", w.Code)
	}

	noEngine := newTestServer()
	noEngine.srv = New(Config{}, Deps{
		Docs: noEngine.docs, Jobs: noEngine.jobs, Contracts: &fakeContracts{}, Risks: noEngine.risks,
		Chunks: noEngine.chunks, Ingestor: noEngine.ingestor, Queue: noEngine.queue, Chat: noEngine.chat,
		Export: noEngine.exporter, Index: noEngine.index, Engine: nil, DB: noEngine.pinger,
	}, nil)
	if w := noEngine.do(t, http.MethodGet, "/api/search?q=terms", nil, ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("nil engine status = %d, want 503", w.Code)
	}
}

func TestExportRisksDownload(t *testing.T) {
	ts := newTestServer()

	w := ts.do(t, http.MethodGet, "/api/export/risks.xlsx", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "risk-report.xlsx") {
		t.Errorf("disposition = %q", cd)
	}
	if !bytes.Equal(w.Body.Bytes(), ts.exporter.data) {
		t.Error("body does not match workbook bytes")
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer()

	if w := ts.do(t, http.MethodGet, "/healthz", nil, ""); w.Code != http.StatusOK {
		t.Errorf("healthy status = %d", w.Code)
	}

	ts.pinger.err = errors.New("connection refused")
	w := ts.do(t, http.MethodGet, "/healthz", nil, "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded status = %d", w.Code)
	}
	resp := parseJSON(t, w.Body)
	if resp["status"] != "degraded" {
		t.Errorf("status field = %v", resp["status"])
	}
}
