// Package parse turns uploaded report files into an ImportBatch. Two
// formats are supported: the monthly HTML report form and the spreadsheet
// template. Both parsers are pure over their input bytes; neither touches
// shared state.
package parse

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"tablero/internal/domain"
)

// File kinds recorded in import history.
const (
	KindHTML  = "HTML"
	KindExcel = "Excel"
)

// UnsupportedFormatError indicates an extension no parser handles.
type UnsupportedFormatError struct {
	FileName string
}

func (e UnsupportedFormatError) Error() string {
	return fmt.Sprintf("formato de archivo no soportado: %s (use archivos HTML o Excel)", e.FileName)
}

// ParseError wraps a format-specific failure with the file kind.
type ParseError struct {
	Kind string
	Err  error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Kind, e.Err)
}

func (e ParseError) Unwrap() error { return e.Err }

// Options carry context the parsers need for defaulted fields. They do not
// change how present values are read.
type Options struct {
	// DefaultResponsible fills the responsible field when the source
	// document carries none.
	DefaultResponsible string
	// Now supplies the clock for defaulted measurement dates. Defaults to
	// time.Now.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) today() string {
	return o.now().UTC().Format("2006-01-02")
}

// DetectKind routes a file name to a parser kind, or returns
// UnsupportedFormatError.
func DetectKind(fileName string) (string, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".html", ".htm":
		return KindHTML, nil
	case ".xlsx", ".xls":
		return KindExcel, nil
	default:
		return "", UnsupportedFormatError{FileName: fileName}
	}
}

// File parses raw upload bytes according to the file extension.
func File(fileName string, data []byte, opts Options) (domain.ImportBatch, string, error) {
	kind, err := DetectKind(fileName)
	if err != nil {
		return domain.ImportBatch{}, "", err
	}
	var batch domain.ImportBatch
	switch kind {
	case KindHTML:
		batch, err = HTML(data, opts)
	case KindExcel:
		batch, err = Excel(data, opts)
	}
	if err != nil {
		return domain.ImportBatch{}, kind, ParseError{Kind: kind, Err: err}
	}
	return batch, kind, nil
}
