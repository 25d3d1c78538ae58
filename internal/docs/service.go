package docs

import (
	"context"
	"errors"
	"fmt"

	"github.com/suPer8Hu/sentinel-chat/internal/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// File is one uploaded blob.
type File struct {
	Name string
	Data []byte
}

// Enqueuer hands an index id to the background worker.
type Enqueuer interface {
	PublishJob(ctx context.Context, indexID string) error
}

type Service struct {
	repo   *Repo
	queue  Enqueuer
	logger *zap.Logger
}

// NewService builds indexes inline when queue is nil, otherwise it enqueues
// them for cmd/worker.
func NewService(repo *Repo, queue Enqueuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, queue: queue, logger: logger}
}

// Ingest stores the files and returns the index handle to attach to the
// session. Indexing itself is fire-and-forget: the handle is usable
// immediately and answers with no context until the index is ready.
func (s *Service) Ingest(ctx context.Context, userID, sessionID string, files []File) (*Index, error) {
	if len(files) == 0 {
		return nil, errors.New("no files uploaded")
	}
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}

	idx := &Index{
		ID:        id,
		UserID:    userID,
		SessionID: sessionID,
		Status:    IndexPending,
		FileCount: len(files),
	}
	uploads := make([]Upload, 0, len(files))
	for _, f := range files {
		uploads = append(uploads, Upload{FileName: f.Name, Data: f.Data})
	}
	if err := s.repo.CreateIndex(ctx, idx, uploads); err != nil {
		return nil, err
	}

	log := s.logger.With(zap.String("index_id", id), zap.String("session_id", sessionID))

	if s.queue == nil {
		if err := s.Build(ctx, id); err != nil {
			log.Warn("inline indexing failed", zap.Error(err))
		}
		return s.repo.GetIndex(ctx, id)
	}

	if err := s.queue.PublishJob(ctx, id); err != nil {
		if markErr := s.repo.MarkFailed(ctx, id, "enqueue failed: "+err.Error()); markErr != nil {
			log.Error("mark index failed after enqueue error, index stays pending", zap.Error(markErr))
		}
		return nil, common.Wrap(err, "enqueue indexing job")
	}
	log.Info("indexing job enqueued", zap.Int("files", len(files)))
	return idx, nil
}

// Build extracts and chunks the uploads of indexID. Files that cannot be read
// are skipped; the index fails only when nothing at all could be extracted.
// Building an index that is already ready does nothing, so a redelivered job
// is harmless.
func (s *Service) Build(ctx context.Context, indexID string) error {
	log := s.logger.With(zap.String("index_id", indexID))

	idx, err := s.repo.GetIndex(ctx, indexID)
	if err != nil {
		return common.Wrapf(err, "load index %s", indexID)
	}
	if idx.Status == IndexReady {
		log.Info("index already ready, skipping build")
		return nil
	}

	ups, err := s.repo.ListUploads(ctx, indexID)
	if err != nil {
		return err
	}

	var chunks []Chunk
	var skipped []string
	for _, up := range ups {
		text, err := ExtractText(up.FileName, up.Data)
		if err != nil {
			log.Warn("skipping unreadable upload", zap.String("file", up.FileName), zap.Error(err))
			skipped = append(skipped, up.FileName)
			continue
		}
		for _, piece := range SplitChunks(text, defaultChunkRunes) {
			chunks = append(chunks, Chunk{FileName: up.FileName, Seq: len(chunks), Content: piece})
		}
	}

	if len(chunks) == 0 {
		msg := "no text could be extracted"
		if len(skipped) > 0 {
			msg = fmt.Sprintf("%s (skipped %v)", msg, skipped)
		}
		if err := s.repo.MarkFailed(ctx, indexID, msg); err != nil {
			return err
		}
		return errors.New(msg)
	}

	if err := s.repo.MarkReady(ctx, indexID, chunks); err != nil {
		return common.Wrapf(err, "mark index %s ready", indexID)
	}
	log.Info("index ready", zap.Int("chunks", len(chunks)), zap.Int("skipped", len(skipped)))
	return nil
}

// Status returns the index if it belongs to userID.
func (s *Service) Status(ctx context.Context, userID, indexID string) (*Index, error) {
	idx, err := s.repo.GetIndex(ctx, indexID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	if idx.UserID != userID {
		// hide existence
		return nil, common.ErrNotFound
	}
	return idx, nil
}

// Search returns up to k chunks of indexID relevant to query. An index that is
// not ready yields no chunks.
func (s *Service) Search(ctx context.Context, indexID, query string, k int) ([]Chunk, error) {
	idx, err := s.repo.GetIndex(ctx, indexID)
	if err != nil {
		return nil, err
	}
	if idx.Status != IndexReady {
		return nil, nil
	}
	chunks, err := s.repo.ListChunks(ctx, indexID)
	if err != nil {
		return nil, err
	}
	return Rank(chunks, query, k), nil
}
