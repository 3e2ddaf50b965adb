package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"

	svcerrors "github.com/tradeflow-ai/tradeflow/internal/errors"
	"github.com/tradeflow-ai/tradeflow/internal/httputil"
	"github.com/tradeflow-ai/tradeflow/internal/upload"
)

const (
	maxUploadFiles  = 20
	multipartMemory = 32 << 20
)

type uploadResponse struct {
	Results          []upload.Result `json:"results"`
	RemainingCredits int             `json:"remainingCredits"`
}

func (h *handler) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	limit := h.uploads.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxUploadFiles)*(limit+1)+(1<<20))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, svcerrors.New(CodeInvalidUpload, http.StatusRequestEntityTooLarge, "Upload too large"), "")
			return
		}
		h.writeError(w, r, svcerrors.BadRequest(CodeInvalidUpload, "Expected a multipart/form-data body"), "")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		h.writeError(w, r, svcerrors.BadRequest(svcerrors.CodeMissingField, "At least one file is required"), "")
		return
	}
	if len(headers) > maxUploadFiles {
		h.writeError(w, r, svcerrors.BadRequest(CodeInvalidUpload, "Too many files"), "")
		return
	}

	docs := make([]upload.Document, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh, limit)
		if err != nil {
			h.writeError(w, r, svcerrors.Internal("Failed to read upload", err), "")
			return
		}
		docs = append(docs, upload.Document{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	results, remaining, err := h.uploads.Process(r.Context(), userID(r), docs)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	h.writeJSON(w, http.StatusOK, uploadResponse{Results: results, RemainingCredits: remaining})
}

// readPart reads at most limit+1 bytes so oversize files are detectable
// without buffering them whole.
func readPart(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, _, err := httputil.ReadAllWithLimit(f, limit+1)
	return data, err
}
