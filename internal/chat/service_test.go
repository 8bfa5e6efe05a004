package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/clauselens/clauselens/internal/common"
	"github.com/clauselens/clauselens/internal/embedding"
	"github.com/clauselens/clauselens/internal/entity"
	"github.com/clauselens/clauselens/internal/llm"
	"github.com/clauselens/clauselens/internal/repository"
	"github.com/clauselens/clauselens/internal/vector"
)

// --- fakes ---

type fakeDocs struct {
	repository.DocumentRepository
	doc *entity.Document
}

func (f *fakeDocs) GetByID(_ context.Context, id uuid.UUID) (*entity.Document, error) {
	if f.doc == nil || f.doc.ID != id {
		return nil, common.ErrNotFound
	}
	return f.doc, nil
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

type fakeChunks struct {
	repository.ChunkRepository
	rows map[uuid.UUID]*entity.Chunk
}

func (f *fakeChunks) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*entity.Chunk, error) {
	var out []*entity.Chunk
	// deliberately return in reverse to prove the service restores rank order
	for i := len(ids) - 1; i >= 0; i-- {
		if c, ok := f.rows[ids[i]]; ok {
			out = append(out, c)
		}
	}
	return out, nil
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

type fakeMessages struct {
	repository.ChatMessageRepository
	msgs []*entity.ChatMessage
}

func (f *fakeMessages) Append(_ context.Context, msg *entity.ChatMessage) error {
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeMessages) ListByDocument(_ context.Context, _ uuid.UUID, limit int) ([]*entity.ChatMessage, error) {
	if limit > 0 && len(f.msgs) > limit {
		return f.msgs[len(f.msgs)-limit:], nil
	}
	return f.msgs, nil
}

type fakeEngine struct {
	vec   []float32
	err   error
	tasks []embedding.Task
}

func (f *fakeEngine) Embed(_ context.Context, _ string, task embedding.Task) ([]float32, error) {
	f.tasks = append(f.tasks, task)
	return f.vec, f.err
}

func (f *fakeEngine) EmbedBatch(ctx context.Context, texts []string, task embedding.Task) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := f.Embed(ctx, texts[i], task)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEngine) Dimensions() int { return 3 }
func (f *fakeEngine) Name() string    { return "fake" }

type fakeAnswerer struct {
	req  llm.AnswerRequest
	text string
	err  error
}

func (f *fakeAnswerer) AnswerQuestion(_ context.Context, req llm.AnswerRequest) (string, error) {
	f.req = req
	return f.text, f.err
}

// --- harness ---

type harness struct {
	doc      *entity.Document
	docs     *fakeDocs
	jobs     *fakeJobs
	chunks   *fakeChunks
	messages *fakeMessages
	engine   *fakeEngine
	answerer *fakeAnswerer
	index    *vector.Index
	svc      *Service
}

func newHarness() *harness {
	docID := uuid.New()
	docType := "ServiceAgreement"
	doc := &entity.Document{
		ID:       docID,
		Filename: "msa.pdf",
		DocType:  &docType,
		Status:   "INDEXED",
	}

	h := &harness{
		doc:      doc,
		docs:     &fakeDocs{doc: doc},
		jobs:     &fakeJobs{},
		chunks:   &fakeChunks{rows: map[uuid.UUID]*entity.Chunk{}},
		messages: &fakeMessages{},
		engine:   &fakeEngine{vec: []float32{1, 0, 0}},
		answerer: &fakeAnswerer{text: "The term is two years."},
		index:    vector.NewIndex(),
	}
	h.svc = NewService(nil, Config{}, h.docs, h.jobs, h.chunks,
		&fakeContracts{contract: &entity.Contract{Title: "Master Services Agreement", DocType: "ServiceAgreement"}},
		h.messages, h.index, h.engine, h.answerer)
	return h
}

func (h *harness) addChunk(seq int, text string, embedding []float32) uuid.UUID {
	id := uuid.New()
	h.chunks.rows[id] = &entity.Chunk{ID: id, DocumentID: h.doc.ID, Seq: seq, Text: text}
	h.index.Upsert(id, h.doc.ID, embedding)
	return id
}

// --- tests ---

func TestAskRetrievesAndCites(t *testing.T) {
	h := newHarness()
	best := h.addChunk(1, "2. Term. The initial term is two years.", []float32{1, 0, 0})
	second := h.addChunk(2, "3. Renewal terms.", []float32{0.9, 0.1, 0})
	h.addChunk(3, "7. Notices.", []float32{0, 1, 0}) // orthogonal, filtered by score

	ans, err := h.svc.Ask(context.Background(), h.doc.ID, "How long is the term?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text != "The term is two years." {
		t.Errorf("answer = %q", ans.Text)
	}

	if len(ans.Citations) != 2 {
		t.Fatalf("citations = %d, want 2", len(ans.Citations))
	}
	if ans.Citations[0].ChunkID != best || ans.Citations[1].ChunkID != second {
		t.Errorf("citation order wrong: %v", ans.Citations)
	}
	if ans.Citations[0].Score <= ans.Citations[1].Score {
		t.Errorf("scores not ranked: %v vs %v", ans.Citations[0].Score, ans.Citations[1].Score)
	}

	if len(h.answerer.req.Passages) != 2 {
		t.Fatalf("passages = %d, want 2", len(h.answerer.req.Passages))
	}
	if !strings.Contains(h.answerer.req.Passages[0].Text, "initial term") {
		t.Errorf("best passage not first: %q", h.answerer.req.Passages[0].Text)
	}
	if h.answerer.req.DocTitle != "Master Services Agreement" {
		t.Errorf("doc title = %q", h.answerer.req.DocTitle)
	}

	if len(h.engine.tasks) != 1 || h.engine.tasks[0] != embedding.TaskQuery {
		t.Errorf("embed tasks = %v, want one RETRIEVAL_QUERY", h.engine.tasks)
	}

	if len(h.messages.msgs) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(h.messages.msgs))
	}
	if h.messages.msgs[0].Role != "user" || h.messages.msgs[1].Role != "assistant" {
		t.Errorf("roles = %s, %s", h.messages.msgs[0].Role, h.messages.msgs[1].Role)
	}
	if len(h.messages.msgs[1].Citations) != 2 {
		t.Errorf("assistant citations = %d, want 2", len(h.messages.msgs[1].Citations))
	}
}

func TestAskFallsBackToTextHead(t *testing.T) {
	h := newHarness()
	text := strings.Repeat("This Agreement continues. ", 400) // ~10k chars
	h.jobs.job = &entity.AnalysisJob{DocText: &text}
	h.svc.cfg.HeadChars = 100

	ans, err := h.svc.Ask(context.Background(), h.doc.ID, "What is this document?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(ans.Citations) != 0 {
		t.Errorf("citations = %d, want 0 for text-head answers", len(ans.Citations))
	}
	if len(h.answerer.req.Passages) != 1 {
		t.Fatalf("passages = %d, want 1", len(h.answerer.req.Passages))
	}
	if got := len(h.answerer.req.Passages[0].Text); got != 100 {
		t.Errorf("head length = %d, want 100", got)
	}
}

func TestAskTextHeadNeverSplitsRunes(t *testing.T) {
	h := newHarness()
	text := strings.Repeat("§", 120) // 2 bytes each
	h.jobs.job = &entity.AnalysisJob{DocText: &text}
	h.svc.cfg.HeadChars = 101 // lands mid-rune

	if _, err := h.svc.Ask(context.Background(), h.doc.ID, "What is this document?"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	head := h.answerer.req.Passages[0].Text
	if !utf8.ValidString(head) {
		t.Fatalf("head is not valid UTF-8: %q", head)
	}
	if len(head) != 100 {
		t.Errorf("head length = %d, want 100 (backed off to a rune start)", len(head))
	}
}

func TestAskFiltersWeakMatches(t *testing.T) {
	h := newHarness()
	h.addChunk(1, "5. Assignment.", []float32{0, 1, 0}) // cosine 0 against the query
	text := "MASTER SERVICES AGREEMENT between two parties."
	h.jobs.job = &entity.AnalysisJob{DocText: &text}

	ans, err := h.svc.Ask(context.Background(), h.doc.ID, "Who are the parties?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(ans.Citations) != 0 {
		t.Errorf("weak matches should be dropped, got %v", ans.Citations)
	}
	if !strings.Contains(h.answerer.req.Passages[0].Text, "MASTER SERVICES") {
		t.Errorf("expected text-head grounding, got %q", h.answerer.req.Passages[0].Text)
	}
}

func TestAskIncludesHistory(t *testing.T) {
	h := newHarness()
	h.addChunk(1, "2. Term.", []float32{1, 0, 0})
	h.messages.msgs = []*entity.ChatMessage{
		{Role: "user", Content: "Summarize this contract."},
		{Role: "assistant", Content: "A services agreement."},
	}

	if _, err := h.svc.Ask(context.Background(), h.doc.ID, "And the term?"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(h.answerer.req.History) != 2 {
		t.Fatalf("history = %d turns, want 2", len(h.answerer.req.History))
	}
	if h.answerer.req.History[0].Content != "Summarize this contract." {
		t.Errorf("history[0] = %q", h.answerer.req.History[0].Content)
	}
	// prior turns plus the new question and answer
	if len(h.messages.msgs) != 4 {
		t.Errorf("stored messages = %d, want 4", len(h.messages.msgs))
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	h := newHarness()
	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := h.svc.Ask(context.Background(), h.doc.ID, q)
		if !errors.Is(err, common.ErrInvalidInput) {
			t.Errorf("Ask(%q) err = %v, want invalid input", q, err)
		}
	}
}

func TestAskDocumentNotFound(t *testing.T) {
	h := newHarness()
	_, err := h.svc.Ask(context.Background(), uuid.New(), "Anything?")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestAskWhileProcessing(t *testing.T) {
	h := newHarness()
	h.doc.Status = "RUNNING"
	_, err := h.svc.Ask(context.Background(), h.doc.ID, "Too early?")
	if !errors.Is(err, common.ErrUnavailable) {
		t.Fatalf("err = %v, want unavailable", err)
	}
}

func TestAskFailedDocument(t *testing.T) {
	h := newHarness()
	h.doc.Status = "FAILED"
	_, err := h.svc.Ask(context.Background(), h.doc.ID, "Still there?")
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestAskAnswererFailureDoesNotPersist(t *testing.T) {
	h := newHarness()
	h.addChunk(1, "2. Term.", []float32{1, 0, 0})
	h.answerer.err = errors.New("gemini: status 500")

	if _, err := h.svc.Ask(context.Background(), h.doc.ID, "What term?"); err == nil {
		t.Fatal("expected answerer error")
	}
	if len(h.messages.msgs) != 0 {
		t.Errorf("failed answers must not be persisted, got %d messages", len(h.messages.msgs))
	}
}

func TestAskNoEngineUsesTextHead(t *testing.T) {
	h := newHarness()
	h.svc.engine = nil
	text := "NDA between parties."
	h.jobs.job = &entity.AnalysisJob{DocText: &text}

	ans, err := h.svc.Ask(context.Background(), h.doc.ID, "What is it?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(ans.Citations) != 0 {
		t.Errorf("citations = %v, want none", ans.Citations)
	}
}

func TestAskNoTextAnywhere(t *testing.T) {
	h := newHarness()
	// no chunks, no job text
	_, err := h.svc.Ask(context.Background(), h.doc.ID, "Anything?")
	if !errors.Is(err, common.ErrUnavailable) {
		t.Fatalf("err = %v, want unavailable", err)
	}
}

func TestAskNoAnswererConfigured(t *testing.T) {
	h := newHarness()
	h.svc.answerer = nil

	_, err := h.svc.Ask(context.Background(), h.doc.ID, "What is the term?")
	if !errors.Is(err, common.ErrUnavailable) {
		t.Fatalf("err = %v, want unavailable", err)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	h := newHarness()
	h.messages.msgs = []*entity.ChatMessage{
		{Role: "user", Content: "Q1"},
		{Role: "assistant", Content: "A1"},
	}
	msgs, err := h.svc.History(context.Background(), h.doc.ID, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("history = %d, want 2", len(msgs))
	}

	if _, err := h.svc.History(context.Background(), uuid.New(), 10); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("missing document should 404, got %v", err)
	}
}
