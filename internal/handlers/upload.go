package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/nkiryanov/videotube/internal/models"
)

const (
	maxUploadSize   = 20 << 20
	maxUploadMemory = 8 << 20
)

// Copies multipart files to local disk so media host may upload them
type uploadSpool struct {
	dir string
}

func (s uploadSpool) parse(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	return r.ParseMultipartForm(maxUploadMemory)
}

// Spool file of the form field. None if request has no such file
func (s uploadSpool) spool(r *http.Request, field string) (models.Optional[string], error) {
	file, header, err := r.FormFile(field)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return models.None[string](), nil
	case err != nil:
		return models.None[string](), err
	}
	defer file.Close() // nolint:errcheck

	dst, err := os.CreateTemp(s.dir, "upload-*"+fileExt(header.Filename))
	if err != nil {
		return models.None[string](), fmt.Errorf("error while spooling upload. Err: %w", err)
	}
	defer dst.Close() // nolint:errcheck

	_, err = io.Copy(dst, file)
	if err != nil {
		_ = os.Remove(dst.Name())
		return models.None[string](), fmt.Errorf("error while spooling upload. Err: %w", err)
	}

	return models.Some(dst.Name()), nil
}

// Remove spooled files and multipart temp files
// Media host removes files it got already, so missing files are fine
func (s uploadSpool) cleanup(r *http.Request, paths ...models.Optional[string]) {
	for _, p := range paths {
		if path, ok := p.Get(); ok {
			_ = os.Remove(path)
		}
	}
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

func fileExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) > 10 {
		return ""
	}
	return ext
}
