package docs

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// CreateIndex stores idx together with its raw uploads.
func (r *Repo) CreateIndex(ctx context.Context, idx *Index, uploads []Upload) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(idx).Error; err != nil {
			return err
		}
		for i := range uploads {
			uploads[i].IndexID = idx.ID
		}
		if len(uploads) == 0 {
			return nil
		}
		return tx.Create(&uploads).Error
	})
}

func (r *Repo) GetIndex(ctx context.Context, id string) (*Index, error) {
	var idx Index
	if err := r.db.WithContext(ctx).First(&idx, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &idx, nil
}

func (r *Repo) ListUploads(ctx context.Context, indexID string) ([]Upload, error) {
	var ups []Upload
	if err := r.db.WithContext(ctx).
		Where("index_id = ?", indexID).
		Order("id ASC").
		Find(&ups).Error; err != nil {
		return nil, err
	}
	return ups, nil
}

// MarkReady stores the chunks, drops the raw uploads and flips the status in
// one transaction. Rebuilding an index replaces its previous chunks.
func (r *Repo) MarkReady(ctx context.Context, indexID string, chunks []Chunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("index_id = ?", indexID).Delete(&Chunk{}).Error; err != nil {
			return err
		}
		if len(chunks) > 0 {
			for i := range chunks {
				chunks[i].IndexID = indexID
			}
			if err := tx.CreateInBatches(&chunks, 200).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("index_id = ?", indexID).Delete(&Upload{}).Error; err != nil {
			return err
		}
		return tx.Model(&Index{}).
			Where("id = ?", indexID).
			Updates(map[string]any{"status": IndexReady, "error": nil}).Error
	})
}

func (r *Repo) MarkFailed(ctx context.Context, indexID string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Index{}).
		Where("id = ?", indexID).
		Updates(map[string]any{"status": IndexFailed, "error": errMsg}).Error
}

func (r *Repo) ListChunks(ctx context.Context, indexID string) ([]Chunk, error) {
	var chunks []Chunk
	if err := r.db.WithContext(ctx).
		Where("index_id = ?", indexID).
		Order("seq ASC").
		Find(&chunks).Error; err != nil {
		return nil, err
	}
	return chunks, nil
}
