package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
)

// Encoding selects how a Request body is put on the wire. Each endpoint
// picks one; callers never infer it.
type Encoding int

const (
	// EncodingJSON sends Body as application/json.
	EncodingJSON Encoding = iota
	// EncodingMultipart sends a *Multipart body as multipart/form-data.
	EncodingMultipart
)

// Request describes one outbound call.
type Request struct {
	Method   string
	Path     string
	Query    url.Values
	Body     any
	Encoding Encoding
	// Header overrides client defaults for this call only.
	Header http.Header
}

// Multipart is a form-data body. Fields are written before files.
type Multipart struct {
	Fields []FormField
	Files  []FormFile
}

type FormField struct {
	Name  string
	Value string
}

type FormFile struct {
	Field       string
	Filename    string
	ContentType string
	Content     io.Reader
}

func (r Request) encode() (io.Reader, string, error) {
	switch r.Encoding {
	case EncodingMultipart:
		form, ok := r.Body.(*Multipart)
		if !ok || form == nil {
			return nil, "", errors.New("multipart request without *Multipart body")
		}
		return form.encode()
	default:
		if r.Body == nil {
			return nil, "", nil
		}
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (m *Multipart) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range m.Fields {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.Name, err)
		}
	}
	for _, f := range m.Files {
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(f.Field), quoteEscaper.Replace(f.Filename)))
		h.Set("Content-Type", contentType)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", f.Field, err)
		}
		if f.Content != nil {
			if _, err := io.Copy(part, f.Content); err != nil {
				return nil, "", fmt.Errorf("copy part %s: %w", f.Field, err)
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// pathf escapes each argument as a single path segment.
func pathf(format string, segments ...string) string {
	args := make([]any, len(segments))
	for i, s := range segments {
		args[i] = url.PathEscape(s)
	}
	return fmt.Sprintf(format, args...)
}
