// Package media turns user-selected files into handles: it validates the
// declared media kind, stores the bytes for the lifetime of a session and
// produces a displayable preview reference that can be released
// deterministically.
package media

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedMediaKind = errors.New("unsupported media kind")
	ErrTooLarge             = errors.New("file too large")
	ErrPreviewRevoked       = errors.New("preview revoked")
	ErrPreviewTooLarge      = errors.New("file too large to preview inline")
)

// File is a user selection before it has been accepted.
type File interface {
	Name() string
	ContentType() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// FirstFile returns the first file of a drop or picker selection, or nil
// when nothing was delivered.
func FirstFile(headers []*multipart.FileHeader) *multipart.FileHeader {
	if len(headers) == 0 {
		return nil
	}
	return headers[0]
}

type multipartFile struct {
	h *multipart.FileHeader
}

// FromMultipart adapts an uploaded form file.
func FromMultipart(h *multipart.FileHeader) File {
	return multipartFile{h: h}
}

func (f multipartFile) Name() string        { return filepath.Base(f.h.Filename) }
func (f multipartFile) ContentType() string { return f.h.Header.Get("Content-Type") }
func (f multipartFile) Size() int64         { return f.h.Size }

func (f multipartFile) Open() (io.ReadCloser, error) {
	return f.h.Open()
}

type pathFile struct {
	path        string
	contentType string
	size        int64
}

// FromPath adapts a local file. The content type comes from the extension,
// falling back to sniffing the first 512 bytes.
func FromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &os.PathError{Op: "open", Path: path, Err: errors.New("is a directory")}
	}

	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if ct == "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		head := make([]byte, 512)
		n, _ := io.ReadFull(f, head)
		f.Close()
		ct = http.DetectContentType(head[:n])
	}

	return &pathFile{path: path, contentType: ct, size: info.Size()}, nil
}

func (f *pathFile) Name() string        { return filepath.Base(f.path) }
func (f *pathFile) ContentType() string { return f.contentType }
func (f *pathFile) Size() int64         { return f.size }

func (f *pathFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

type bytesFile struct {
	name        string
	contentType string
	data        []byte
}

// FromBytes adapts an in-memory file.
func FromBytes(name, contentType string, data []byte) File {
	return &bytesFile{name: name, contentType: contentType, data: data}
}

func (f *bytesFile) Name() string        { return f.name }
func (f *bytesFile) ContentType() string { return f.contentType }
func (f *bytesFile) Size() int64         { return int64(len(f.data)) }

func (f *bytesFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// storedExt keeps a short alphanumeric extension from the original name.
func storedExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}
