package export

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/google/uuid"

	"contaportal/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

var documentColumns = []string{
	"Client",
	"Title",
	"Document Type",
	"Status",
	"Uploaded At",
	"Reviewed At",
	"File Reference",
}

// CSVWriter wraps csv.Writer for exporting documents.
type CSVWriter struct {
	csv *csv.Writer
}

// NewCSVWriter creates a CSVWriter that writes to w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *CSVWriter) WriteHeader() error {
	return w.csv.Write(documentColumns)
}

// WriteDocuments writes one row per document. owners maps an owner account to
// the client name shown in the first column.
func (w *CSVWriter) WriteDocuments(docs []domain.Document, owners map[uuid.UUID]string) error {
	for i := range docs {
		if err := w.csv.Write(documentRow(&docs[i], owners[docs[i].OwnerUserID])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *CSVWriter) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *CSVWriter) Error() error {
	return w.csv.Error()
}

// WriteReportCSV writes the report's documents, BOM first.
func WriteReportCSV(out io.Writer, report Report) error {
	if _, err := out.Write(BOM); err != nil {
		return err
	}
	w := NewCSVWriter(out)
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if err := w.WriteDocuments(report.Documents, report.OwnerNames); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func documentRow(doc *domain.Document, client string) []string {
	return []string{
		client,
		doc.Title,
		string(doc.DocumentType),
		string(doc.Status),
		doc.UploadDate.Format(time.RFC3339),
		formatTime(doc.ReviewedAt),
		doc.FileReference,
	}
}
