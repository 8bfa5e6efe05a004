// Package ingest brings documents into the store. HTTP uploads, directory
// walks, and the filesystem watcher all funnel through IngestFile, which
// hashes content, deduplicates, and persists the bytes under the upload dir.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/clauselens/clauselens/constants"
	"github.com/clauselens/clauselens/internal/common"
	"github.com/clauselens/clauselens/internal/entity"
	"github.com/clauselens/clauselens/internal/repository"
)

// DefaultMaxFileBytes caps uploads at 50 MB.
const DefaultMaxFileBytes = 50 << 20

// maxFilenameRunes bounds client-supplied filenames; safeName squashes
// multibyte runes to ASCII so the stored basename stays under NAME_MAX.
const maxFilenameRunes = 200

// IngestRequest describes one file to ingest. Exactly one of Content or
// SourcePath must be set.
type IngestRequest struct {
	Filename   string // original name; kept on the document row
	Ext        string // optional; derived from Filename when empty
	Content    []byte // file bytes (HTTP uploads)
	SourcePath string // path to read (directory walks, watcher)
}

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	Document  *entity.Document
	Duplicate bool
	HashHex   string
}

// Ingestor validates, hashes, stores, and records incoming files.
type Ingestor struct {
	docs      repository.DocumentRepository
	uploadDir string
	logger    *slog.Logger

	// MaxBytes caps the accepted file size; defaults to DefaultMaxFileBytes.
	MaxBytes int64
}

func NewIngestor(docs repository.DocumentRepository, uploadDir string, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		docs:      docs,
		uploadDir: uploadDir,
		logger:    logger,
		MaxBytes:  DefaultMaxFileBytes,
	}
}

// IngestFile hashes the content and either returns the existing document for
// a known hash (Duplicate=true) or stores the bytes under the upload dir and
// inserts a QUEUED document row.
func (i *Ingestor) IngestFile(ctx context.Context, req IngestRequest) (IngestionResult, error) {
	var out IngestionResult

	name := req.Filename
	if name == "" && req.SourcePath != "" {
		name = filepath.Base(req.SourcePath)
	}
	ext := constants.NormalizeExt(req.Ext)
	if ext == "" {
		ext = constants.NormalizeExt(filepath.Ext(name))
	}

	v := common.NewValidator()
	v.Field("filename", name, common.Required, common.MaxLen(maxFilenameRunes))
	v.Field("ext", ext, common.OneOf(constants.AllowedExtensionList()...))
	if err := common.ValidateAndReturnError(v); err != nil {
		return out, err
	}

	content := req.Content
	if content == nil {
		if req.SourcePath == "" {
			return out, common.InvalidArgumentError("either content or source path is required")
		}
		b, err := os.ReadFile(req.SourcePath)
		if err != nil {
			return out, fmt.Errorf("read %s: %w", req.SourcePath, err)
		}
		content = b
	}
	if len(content) == 0 {
		return out, common.InvalidArgumentError("file is empty")
	}
	if int64(len(content)) > i.maxBytes() {
		return out, common.InvalidArgumentError(fmt.Sprintf("file exceeds %d MB limit", i.maxBytes()>>20))
	}

	sum := sha256.Sum256(content)
	hashHex := hex.EncodeToString(sum[:])

	if err := os.MkdirAll(i.uploadDir, 0o755); err != nil {
		return out, fmt.Errorf("create upload dir: %w", err)
	}
	stored := filepath.Join(i.uploadDir, hashHex[:12]+"_"+safeName(name))
	if err := os.WriteFile(stored, content, 0o644); err != nil {
		return out, fmt.Errorf("store %s: %w", stored, err)
	}

	doc := &entity.Document{
		SourcePath:  stored,
		ContentHash: sum[:],
		Filename:    name,
		FileExt:     ext,
		FileSize:    len(content),
	}
	row, dup, err := i.docs.UpsertByHash(ctx, doc)
	if err != nil {
		_ = os.Remove(stored)
		return out, err
	}
	if dup && row.SourcePath != stored {
		// same content arrived under a new name; the first copy stays canonical
		_ = os.Remove(stored)
	}

	i.logger.Info("ingest.file",
		"document_id", row.ID, "filename", name, "ext", ext,
		"size", len(content), "duplicate", dup,
		"request_id", common.RequestIDFromContext(ctx),
	)
	return IngestionResult{Document: row, Duplicate: dup, HashHex: hashHex}, nil
}

func (i *Ingestor) maxBytes() int64 {
	if i.MaxBytes > 0 {
		return i.MaxBytes
	}
	return DefaultMaxFileBytes
}

var reUnsafeName = regexp.MustCompile(`[^\w.\-]+`)

// safeName reduces a client-supplied filename to a safe basename.
func safeName(name string) string {
	base := reUnsafeName.ReplaceAllString(filepath.Base(name), "_")
	if base == "" || base == "." || base == ".." {
		base = "file"
	}
	return base
}
