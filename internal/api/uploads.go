package api

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/starford/flipshelf/internal/apperr"
	"github.com/starford/flipshelf/internal/upload"
)

const maxUploadBytes = 200 << 20 // 200 MB per batch

// Upload handles POST /api/uploads (multipart/form-data, one or more "files"
// fields).
//
//	@Summary		Upload PDF, EPUB or TXT files into the library
//	@Tags			books
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			files	formData	file	true	"Documents"
//	@Success		200		{object}	UploadResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/uploads [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("files too large or invalid multipart"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	headers = append(headers, r.MultipartForm.File["file"]...)
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'files' field in multipart form"))
		return
	}

	files := make([]upload.File, 0, len(headers))
	for _, fh := range headers {
		f, err := readPart(fh)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read "+fh.Filename))
			return
		}
		files = append(files, f)
	}

	resp, err := h.svc.Upload(r.Context(), files)
	if err != nil {
		if errors.Is(err, apperr.ErrNoSupportedFiles) {
			writeJSON(w, http.StatusBadRequest, errorBody(apperr.ErrNoSupportedFiles.Error()))
			return
		}
		slog.Error("upload failed", slog.Int("files", len(files)), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func readPart(fh *multipart.FileHeader) (upload.File, error) {
	src, err := fh.Open()
	if err != nil {
		return upload.File{}, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return upload.File{}, err
	}
	return upload.File{
		Name: filepath.Base(fh.Filename),
		MIME: fh.Header.Get("Content-Type"),
		Data: data,
	}, nil
}
