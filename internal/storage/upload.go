// AngelaMos | 2026
// upload.go

package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"github.com/angelamos/musicdesk/internal/core"
)

var (
	ErrFileTooLarge = errors.New("file too large")
	ErrInvalidFile  = errors.New("file type not allowed")
)

const (
	KindImage    = "image"
	KindAudio    = "audio"
	KindDocument = "document"
)

// File is an upload held in memory after its type has been sniffed.
type File struct {
	Name        string
	ContentType string
	Extension   string
	Kind        string
	Data        []byte
}

func (f *File) Size() int64 {
	return int64(len(f.Data))
}

func (f *File) Reader() io.Reader {
	return bytes.NewReader(f.Data)
}

// Policy limits what an upload endpoint accepts.
type Policy struct {
	MaxSize int64
	Kinds   []string
	// Documents lists accepted non-media MIME types.
	Documents []string
}

var (
	ReceiptPolicy = Policy{
		MaxSize:   10 << 20,
		Kinds:     []string{KindImage, KindDocument},
		Documents: []string{"application/pdf"},
	}
	AttachmentPolicy = Policy{
		MaxSize: 20 << 20,
		Kinds:   []string{KindImage, KindAudio, KindDocument},
		Documents: []string{
			"application/pdf",
			"application/msword",
			"application/x-ole-storage",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		},
	}
	AvatarPolicy = Policy{
		MaxSize: 5 << 20,
		Kinds:   []string{KindImage},
	}
)

// ReadUpload reads a multipart file and checks it against p using the
// sniffed content type, not the client supplied one.
func ReadUpload(fh *multipart.FileHeader, p Policy) (*File, error) {
	if fh.Size > p.MaxSize {
		return nil, fmt.Errorf("%s: %w", fh.Filename, ErrFileTooLarge)
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close() //nolint:errcheck // read-only multipart part

	data, err := io.ReadAll(io.LimitReader(src, p.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	return Inspect(fh.Filename, data, p)
}

func Inspect(name string, data []byte, p Policy) (*File, error) {
	if int64(len(data)) > p.MaxSize {
		return nil, fmt.Errorf("%s: %w", name, ErrFileTooLarge)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty: %w", name, ErrInvalidFile)
	}

	mt := mimetype.Detect(data)
	kind := kindOf(mt)

	if !p.allows(kind, mt) {
		return nil, fmt.Errorf("%s (%s): %w", name, mt.String(), ErrInvalidFile)
	}

	contentType, _, _ := strings.Cut(mt.String(), ";")

	return &File{
		Name:        SafeName(name),
		ContentType: contentType,
		Extension:   mt.Extension(),
		Kind:        kind,
		Data:        data,
	}, nil
}

func kindOf(mt *mimetype.MIME) string {
	for m := mt; m != nil; m = m.Parent() {
		switch {
		case strings.HasPrefix(m.String(), "image/"):
			return KindImage
		case strings.HasPrefix(m.String(), "audio/"):
			return KindAudio
		}
	}
	return KindDocument
}

func (p Policy) allows(kind string, mt *mimetype.MIME) bool {
	ok := false
	for _, k := range p.Kinds {
		if k == kind {
			ok = true
			break
		}
	}
	if !ok {
		return false
	}
	if kind != KindDocument {
		return true
	}
	for _, doc := range p.Documents {
		if mt.Is(doc) {
			return true
		}
	}
	return false
}

const maxNameBytes = 120

// SafeName keeps the base name of a client file name and replaces
// characters that are awkward in object keys.
func SafeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return "file"
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := b.String()
	if len(out) > maxNameBytes {
		start := len(out) - maxNameBytes
		for start < len(out) && !utf8.RuneStart(out[start]) {
			start++
		}
		out = out[start:]
	}
	return out
}

// UploadAppError maps upload rejections to their API error, or nil when
// err is not an upload rejection.
func UploadAppError(err error) *core.AppError {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return core.NewAppError(err, err.Error(), http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE")
	case errors.Is(err, ErrInvalidFile):
		return core.NewAppError(err, err.Error(), http.StatusBadRequest, "INVALID_FILE")
	default:
		return nil
	}
}

const multipartMemory = 8 << 20

// ReadFormFile parses a multipart request and returns the single file
// sent as field.
func ReadFormFile(r *http.Request, field string, p Policy) (*File, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, fmt.Errorf("parse multipart form: %w", core.ErrInvalidInput)
	}

	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, fmt.Errorf("%s is required: %w", field, core.ErrInvalidInput)
	}

	return ReadUpload(headers[0], p)
}

// ReadFormFiles returns every file sent as field, in form order.
func ReadFormFiles(r *http.Request, field string, p Policy) ([]*File, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, fmt.Errorf("parse multipart form: %w", core.ErrInvalidInput)
	}

	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, fmt.Errorf("%s is required: %w", field, core.ErrInvalidInput)
	}

	files := make([]*File, 0, len(headers))
	for _, fh := range headers {
		f, err := ReadUpload(fh, p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	return files, nil
}
