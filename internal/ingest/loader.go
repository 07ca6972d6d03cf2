package ingest

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"medbot/internal/domain"
)

// LoadDir reads every .pdf and .txt file under dir. Only the file path is
// kept as metadata, as the document's Source.
func LoadDir(dir string) ([]domain.Document, error) {
	var documents []domain.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		var content string
		switch strings.ToLower(filepath.Ext(path)) {
		case ".pdf":
			content, err = readPDF(path)
		case ".txt":
			var data []byte
			data, err = os.ReadFile(path)
			content = string(data)
		default:
			return nil
		}
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		if strings.TrimSpace(content) == "" {
			return nil
		}
		documents = append(documents, domain.Document{ID: hashString(path), Source: path, Content: content})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(documents) == 0 {
		return nil, fmt.Errorf("no .pdf or .txt documents found in %s", dir)
	}
	return documents, nil
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	text, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, text); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
