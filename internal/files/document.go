// Package files prepares local documents for test generation uploads.
package files

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"testai/internal/api"
)

var ErrTooLarge = errors.New("document exceeds max upload size")

// Loaded is a document read fully into memory, ready to send.
type Loaded struct {
	Filename    string
	ContentType string
	Size        int64
	SHA256      string
	data        []byte
}

// Document returns a gateway upload over the loaded bytes. Each call gets a
// fresh reader.
func (l *Loaded) Document() api.Document {
	return api.Document{
		Filename:    l.Filename,
		ContentType: l.ContentType,
		Content:     bytes.NewReader(l.data),
	}
}

type Loader struct {
	maxBytes int64
}

// NewLoader returns a loader refusing documents over maxBytes. Zero or
// negative means no limit.
func NewLoader(maxBytes int64) *Loader {
	return &Loader{maxBytes: maxBytes}
}

// Open loads the file at path.
func (l *Loader) Open(path string) (*Loaded, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()
	return l.Read(f, filepath.Base(path), "")
}

// Read loads a document from r. declaredMIME is used when the content
// itself does not say what it is.
func (l *Loader) Read(r io.Reader, filename, declaredMIME string) (*Loaded, error) {
	data, hash, detected, err := l.readAndHash(r, filename, declaredMIME)
	if err != nil {
		return nil, err
	}
	return &Loaded{
		Filename:    filename,
		ContentType: detected,
		Size:        int64(len(data)),
		SHA256:      hash,
		data:        data,
	}, nil
}

func (l *Loader) readAndHash(r io.Reader, filename, declaredMIME string) ([]byte, string, string, error) {
	src := r
	if l.maxBytes > 0 {
		src = io.LimitReader(r, l.maxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, "", "", fmt.Errorf("read document: %w", err)
	}
	if l.maxBytes > 0 && int64(len(data)) > l.maxBytes {
		return nil, "", "", fmt.Errorf("%s: %w (%d bytes)", filename, ErrTooLarge, l.maxBytes)
	}

	hash := sha256.Sum256(data)
	return data, hex.EncodeToString(hash[:]), detectType(data, filename, declaredMIME), nil
}

func detectType(data []byte, filename, declaredMIME string) string {
	detected := http.DetectContentType(sampleBytes(data))
	if detected != "application/octet-stream" && detected != "application/zip" {
		return detected
	}
	if declaredMIME != "" {
		return declaredMIME
	}
	// Office formats sniff as zip.
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		return byExt
	}
	return detected
}

func sampleBytes(data []byte) []byte {
	if len(data) < 512 {
		return data
	}
	return data[:512]
}
