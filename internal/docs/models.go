package docs

import "time"

type IndexStatus string

const (
	IndexPending IndexStatus = "pending"
	IndexReady   IndexStatus = "ready"
	IndexFailed  IndexStatus = "failed"
)

// Index is the handle a session holds after uploading documents.
type Index struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	UserID    string `gorm:"type:varchar(255);index;not null" json:"-"`
	SessionID string `gorm:"type:varchar(26);index;not null" json:"session_id"`

	Status    IndexStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	FileCount int         `gorm:"not null" json:"file_count"`
	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Index) TableName() string { return "document_indexes" }

// Upload is a raw file waiting to be indexed. Rows are removed once the
// index is built.
type Upload struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	IndexID  string `gorm:"size:26;index;not null"`
	FileName string `gorm:"type:varchar(255);not null"`
	Data     []byte `gorm:"type:longblob;not null"`
}

func (Upload) TableName() string { return "document_uploads" }

type Chunk struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"-"`
	IndexID  string `gorm:"size:26;index:idx_doc_chunk_seq,priority:1;not null" json:"-"`
	FileName string `gorm:"type:varchar(255);not null" json:"file_name"`
	Seq      int    `gorm:"index:idx_doc_chunk_seq,priority:2;not null" json:"seq"`
	Content  string `gorm:"type:text;not null" json:"content"`
}

func (Chunk) TableName() string { return "document_chunks" }

// Models lists the tables this package owns, for AutoMigrate.
func Models() []any {
	return []any{&Index{}, &Upload{}, &Chunk{}}
}
