package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/sentinel-chat/internal/common"
	"github.com/suPer8Hu/sentinel-chat/internal/docs"
	"go.uber.org/zap"
)

const maxUploadBytes = 20 << 20

// UploadDocuments stores the multipart "files" and attaches the resulting
// index to the active chat; later turns route to the documents agent.
func (h *Handler) UploadDocuments(c *gin.Context) {
	id, st, ok := h.state(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "multipart form required")
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		common.Fail(c, http.StatusBadRequest, 10005, "no files uploaded")
		return
	}

	files := make([]docs.File, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > maxUploadBytes {
			common.Fail(c, http.StatusRequestEntityTooLarge, 10006, "file too large: "+fh.Filename)
			return
		}
		f, err := fh.Open()
		if err != nil {
			common.Fail(c, http.StatusBadRequest, 10007, "unreadable upload: "+fh.Filename)
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		_ = f.Close()
		if err != nil {
			common.Fail(c, http.StatusBadRequest, 10007, "unreadable upload: "+fh.Filename)
			return
		}
		files = append(files, docs.File{Name: fh.Filename, Data: data})
	}

	st.Lock()
	defer st.Unlock()

	idx, err := h.Docs.Ingest(c.Request.Context(), id, st.ActiveID, files)
	if err != nil {
		h.log(c).Error("ingest documents failed", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to ingest documents")
		return
	}
	st.DocumentIndex = idx.ID

	common.OK(c, gin.H{
		"index_id":   idx.ID,
		"session_id": st.ActiveID,
		"status":     idx.Status,
		"files":      idx.FileCount,
	})
}

func (h *Handler) GetDocumentIndex(c *gin.Context) {
	id, _, ok := h.state(c)
	if !ok {
		return
	}
	idx, err := h.Docs.Status(c.Request.Context(), id, c.Param("index_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"index": idx})
}
