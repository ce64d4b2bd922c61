// Package transfer reads and writes the files players exchange by hand:
// the solo backup document, a single teacher session, and a ZIP archive of
// every session.
package transfer

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/fablekeep/internal/canon"
	"github.com/roach88/fablekeep/internal/gameplay"
	"github.com/roach88/fablekeep/internal/session"
)

// maxImportBytes bounds a single imported document.
const maxImportBytes = 8 << 20

// SoloFileName is the suggested name of a solo export made at t.
func SoloFileName(t time.Time) string {
	return "fablekeep-backup-" + t.UTC().Format("2006-01-02") + ".json"
}

// SessionFileName is the name of s inside exports: "<slug>-<id>.json".
func SessionFileName(s *session.Session) string {
	return slug(s.Name) + "-" + s.ID + ".json"
}

var lower = cases.Lower(language.Und)

// slug lower-cases name and replaces every run of characters other than
// letters and digits with one hyphen.
func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range lower.String(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "session"
	}
	return out
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func readDocument(r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxImportBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImportBytes {
		return nil, fmt.Errorf("document larger than %d bytes", maxImportBytes)
	}
	tree, err := canon.Decode(data)
	if err != nil {
		return nil, err
	}
	doc, ok := tree.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %T", tree)
	}
	return doc, nil
}

// ExportSolo writes {"exportedAt": RFC 3339, "data": snapshot}.
func ExportSolo(w io.Writer, snap *gameplay.Snapshot, now time.Time) error {
	doc := map[string]any{
		"exportedAt": now.UTC().Format(time.RFC3339),
		"data":       snap.Export(),
	}
	if err := writeJSON(w, doc); err != nil {
		return fmt.Errorf("export gameplay: %w", err)
	}
	return nil
}

// ImportSolo applies an exported solo document to snap. A bare snapshot
// without the export wrapper is accepted too. snap is unchanged on error;
// a document with no characters gives a *gameplay.ValidationError.
func ImportSolo(r io.Reader, snap *gameplay.Snapshot) (gameplay.Report, error) {
	doc, err := readDocument(r)
	if err != nil {
		return gameplay.Report{}, fmt.Errorf("import gameplay: %w", err)
	}
	if data, ok := doc["data"].(map[string]any); ok {
		doc = data
	}
	candidate, err := gameplay.Migrate(doc)
	if err != nil {
		return gameplay.Report{}, fmt.Errorf("import gameplay: %w", err)
	}
	report, err := snap.Apply(candidate)
	if err != nil {
		return report, fmt.Errorf("import gameplay: %w", err)
	}
	return report, nil
}

// ExportSession writes the whole session document.
func ExportSession(w io.Writer, s *session.Session) error {
	if err := writeJSON(w, s.Export()); err != nil {
		return fmt.Errorf("export session %s: %w", s.ID, err)
	}
	return nil
}

// ImportSession reads a session document. now stands in for unreadable
// timestamps.
func ImportSession(r io.Reader, now time.Time) (*session.Session, error) {
	doc, err := readDocument(r)
	if err != nil {
		return nil, fmt.Errorf("import session: %w", err)
	}
	s, err := session.FromExport(doc, now)
	if err != nil {
		return nil, fmt.Errorf("import session: %w", err)
	}
	return s, nil
}

// ExportArchive writes a ZIP archive holding one session document per
// session. Entry times are the sessions' UpdatedAt so identical registries
// produce identical archives.
func ExportArchive(w io.Writer, sessions []*session.Session) error {
	zw := zip.NewWriter(w)
	for _, s := range sessions {
		hdr := &zip.FileHeader{
			Name:     SessionFileName(s),
			Method:   zip.Deflate,
			Modified: s.UpdatedAt.UTC(),
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("export archive: %w", err)
		}
		if err := ExportSession(fw, s); err != nil {
			return fmt.Errorf("export archive: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("export archive: %w", err)
	}
	return nil
}

// ImportArchive reads every .json entry of a ZIP archive as a session.
// Entries that are not sessions are reported in skipped and do not abort
// the import.
func ImportArchive(data []byte, now time.Time) (sessions []*session.Session, skipped []string, err error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("import archive: %w", err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, ".json") {
			skipped = append(skipped, f.Name)
			continue
		}
		s, err := importEntry(f, now)
		if err != nil {
			skipped = append(skipped, f.Name)
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, skipped, nil
}

func importEntry(f *zip.File, now time.Time) (*session.Session, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return ImportSession(rc, now)
}
