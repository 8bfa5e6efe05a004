// Package chat answers questions about a single document, grounded in its
// indexed chunks or, when none exist, in the head of the document text.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/clauselens/clauselens/constants"
	"github.com/clauselens/clauselens/internal/common"
	"github.com/clauselens/clauselens/internal/embedding"
	"github.com/clauselens/clauselens/internal/entity"
	"github.com/clauselens/clauselens/internal/llm"
	"github.com/clauselens/clauselens/internal/repository"
	"github.com/clauselens/clauselens/internal/vector"
)

// Config holds retrieval and prompt budgets.
type Config struct {
	TopK         int     // chunks retrieved per question
	MinScore     float32 // cosine floor for retrieved chunks
	HistoryLimit int     // prior turns included in the prompt
	HeadChars    int     // text-head fallback size
}

// Answer is a grounded reply plus the chunks it cites.
type Answer struct {
	Text      string            `json:"text"`
	Citations []entity.Citation `json:"citations,omitempty"`
}

type Service struct {
	logger    *slog.Logger
	cfg       Config
	docs      repository.DocumentRepository
	jobs      repository.AnalysisJobRepository
	chunks    repository.ChunkRepository
	contracts repository.ContractRepository
	messages  repository.ChatMessageRepository
	index     *vector.Index
	engine    embedding.Engine // nil disables retrieval, not chat
	answerer  llm.Answerer
}

func NewService(
	logger *slog.Logger,
	cfg Config,
	docs repository.DocumentRepository,
	jobs repository.AnalysisJobRepository,
	chunks repository.ChunkRepository,
	contracts repository.ContractRepository,
	messages repository.ChatMessageRepository,
	index *vector.Index,
	engine embedding.Engine,
	answerer llm.Answerer,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = 0.25
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 12
	}
	if cfg.HeadChars <= 0 {
		cfg.HeadChars = 6000
	}
	return &Service{
		logger:    logger,
		cfg:       cfg,
		docs:      docs,
		jobs:      jobs,
		chunks:    chunks,
		contracts: contracts,
		messages:  messages,
		index:     index,
		engine:    engine,
		answerer:  answerer,
	}
}

// maxQuestionRunes bounds a single chat question.
const maxQuestionRunes = 4000

// Ask answers one question about the document and appends both turns to the
// conversation history.
func (s *Service) Ask(ctx context.Context, documentID uuid.UUID, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	v := common.NewValidator()
	v.Field("question", question, common.Required, common.MaxLen(maxQuestionRunes))
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}

	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NotFoundError("document not found")
		}
		return nil, err
	}
	switch doc.Status {
	case string(constants.JobStatusQueued), string(constants.JobStatusRunning):
		return nil, common.UnavailableError("document is still processing")
	case string(constants.JobStatusFailed):
		return nil, common.NewAppError("FAILED_PRECONDITION", "document processing failed; reprocess it before chatting", common.ErrConflict)
	}
	if s.answerer == nil {
		return nil, common.UnavailableError("no language model is configured")
	}

	passages, citations := s.retrieve(ctx, documentID, question)
	if len(passages) == 0 {
		head, err := s.textHead(ctx, documentID)
		if err != nil {
			return nil, err
		}
		passages = []llm.Passage{{Seq: 1, Heading: "Document text (beginning)", Text: head}}
		s.logger.Debug("chat.fallback.text_head", "document_id", documentID, "chars", len(head))
	}

	history := s.history(ctx, documentID)
	title, docType := s.docContext(ctx, doc)

	text, err := s.answerer.AnswerQuestion(ctx, llm.AnswerRequest{
		Question: question,
		DocTitle: title,
		DocType:  docType,
		Passages: passages,
		History:  history,
	})
	if err != nil {
		return nil, common.WrapError(err, "answer question")
	}

	s.persistTurns(ctx, documentID, question, text, citations)
	s.logger.Info("chat.answered",
		"document_id", documentID, "passages", len(passages),
		"citations", len(citations), "history", len(history),
	)
	return &Answer{Text: text, Citations: citations}, nil
}

// retrieve embeds the question and pulls the best chunks for this document.
// Any retrieval failure degrades to the text-head fallback rather than
// failing the question.
func (s *Service) retrieve(ctx context.Context, documentID uuid.UUID, question string) ([]llm.Passage, []entity.Citation) {
	if s.engine == nil || s.index == nil {
		return nil, nil
	}

	qvec, err := s.engine.Embed(ctx, question, embedding.TaskQuery)
	if err != nil {
		s.logger.Warn("chat.embed.failed", "document_id", documentID, "err", err)
		return nil, nil
	}

	matches := s.index.Search(qvec, s.cfg.TopK, documentID)
	ids := make([]uuid.UUID, 0, len(matches))
	scores := make(map[uuid.UUID]float32, len(matches))
	for _, m := range matches {
		if float32(m.Score) < s.cfg.MinScore {
			continue
		}
		ids = append(ids, m.ChunkID)
		scores[m.ChunkID] = float32(m.Score)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.chunks.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("chat.chunks.load_failed", "document_id", documentID, "err", err)
		return nil, nil
	}
	byID := make(map[uuid.UUID]*entity.Chunk, len(rows))
	for _, c := range rows {
		byID[c.ID] = c
	}

	// keep the ranking order from the index
	passages := make([]llm.Passage, 0, len(ids))
	citations := make([]entity.Citation, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			continue
		}
		passages = append(passages, llm.Passage{Seq: c.Seq, Heading: c.Heading, Text: c.Text})
		citations = append(citations, entity.Citation{ChunkID: c.ID, Seq: c.Seq, Score: scores[id]})
	}
	return passages, citations
}

// textHead grounds the answer in the first part of the document when no
// chunks are indexed.
func (s *Service) textHead(ctx context.Context, documentID uuid.UUID) (string, error) {
	job, err := s.jobs.LatestForDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.UnavailableError("document has no extracted text yet")
		}
		return "", err
	}
	if job.DocText == nil || *job.DocText == "" {
		return "", common.UnavailableError("document has no extracted text yet")
	}
	head := *job.DocText
	if len(head) > s.cfg.HeadChars {
		cut := s.cfg.HeadChars
		for cut > 0 && !utf8.RuneStart(head[cut]) {
			cut--
		}
		head = head[:cut]
	}
	return head, nil
}

func (s *Service) history(ctx context.Context, documentID uuid.UUID) []llm.ChatTurn {
	msgs, err := s.messages.ListByDocument(ctx, documentID, s.cfg.HistoryLimit)
	if err != nil {
		s.logger.Warn("chat.history.load_failed", "document_id", documentID, "err", err)
		return nil
	}
	turns := make([]llm.ChatTurn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, llm.ChatTurn{Role: m.Role, Content: m.Content})
	}
	return turns
}

// docContext pulls the contract title and type when analysis produced them,
// falling back to the filename.
func (s *Service) docContext(ctx context.Context, doc *entity.Document) (string, string) {
	title := doc.Filename
	docType := ""
	if doc.DocType != nil {
		docType = *doc.DocType
	}
	if c, err := s.contracts.GetByDocument(ctx, doc.ID); err == nil && c != nil {
		if c.Title != "" {
			title = c.Title
		}
		if c.DocType != "" {
			docType = c.DocType
		}
	}
	return title, docType
}

// persistTurns appends the question and answer to the conversation. Failures
// are logged, not returned: the caller already has the answer.
func (s *Service) persistTurns(ctx context.Context, documentID uuid.UUID, question, answer string, citations []entity.Citation) {
	user := &entity.ChatMessage{DocumentID: documentID, Role: "user", Content: question}
	if err := s.messages.Append(ctx, user); err != nil {
		s.logger.Warn("chat.persist.user_failed", "document_id", documentID, "err", err)
	}
	assistant := &entity.ChatMessage{DocumentID: documentID, Role: "assistant", Content: answer, Citations: citations}
	if err := s.messages.Append(ctx, assistant); err != nil {
		s.logger.Warn("chat.persist.assistant_failed", "document_id", documentID, "err", err)
	}
}

// History returns the stored conversation for a document, oldest first.
func (s *Service) History(ctx context.Context, documentID uuid.UUID, limit int) ([]*entity.ChatMessage, error) {
	if _, err := s.docs.GetByID(ctx, documentID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NotFoundError("document not found")
		}
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.messages.ListByDocument(ctx, documentID, limit)
}
