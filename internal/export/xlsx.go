package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// Sheet names in the exported workbook.
const (
	SheetClients     = "Clients"
	SheetDocuments   = "Documents"
	SheetObligations = "Obligations"
)

var clientColumns = []any{"Company", "Tax ID", "Contact Person", "Email", "Status", "Pending Documents", "Next Deadline"}

var obligationColumns = []any{"Client", "Obligation", "Deadline", "Amount", "Status", "Paid At"}

// WriteReportXLSX writes the report as a workbook with one sheet per entity.
func WriteReportXLSX(out io.Writer, report Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetClients); err != nil {
		return fmt.Errorf("export.WriteReportXLSX: %w", err)
	}
	for _, name := range []string{SheetDocuments, SheetObligations} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("export.WriteReportXLSX: %w", err)
		}
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export.WriteReportXLSX: %w", err)
	}

	clients := [][]any{clientColumns}
	for _, c := range report.Clients {
		deadline := ""
		if c.NextDeadline != nil {
			deadline = c.NextDeadline.Format("2006-01-02")
		}
		clients = append(clients, []any{
			c.CompanyName, c.TaxID, c.ContactPerson, c.Email,
			string(c.Status), c.PendingDocumentCount, deadline,
		})
	}

	docHeader := make([]any, len(documentColumns))
	for i, col := range documentColumns {
		docHeader[i] = col
	}
	documents := [][]any{docHeader}
	for i := range report.Documents {
		d := &report.Documents[i]
		row := documentRow(d, report.OwnerNames[d.OwnerUserID])
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		documents = append(documents, cells)
	}

	obligations := [][]any{obligationColumns}
	for _, o := range report.Obligations {
		obligations = append(obligations, []any{
			report.OwnerNames[o.OwnerUserID], o.Name, o.Deadline.Format("2006-01-02"),
			o.Amount.InexactFloat64(), string(o.Status), formatTime(o.PaidAt),
		})
	}

	for sheet, rows := range map[string][][]any{
		SheetClients:     clients,
		SheetDocuments:   documents,
		SheetObligations: obligations,
	} {
		if err := writeRows(f, sheet, rows, header); err != nil {
			return fmt.Errorf("export.WriteReportXLSX: %s: %w", sheet, err)
		}
	}

	f.SetActiveSheet(0)
	props := &excelize.DocProperties{
		Title:   fmt.Sprintf("Portfolio of %s", report.Accountant.Name),
		Creator: report.Accountant.Name,
		Created: report.GeneratedAt.Format(time.RFC3339),
	}
	if err := f.SetDocProps(props); err != nil {
		return fmt.Errorf("export.WriteReportXLSX: %w", err)
	}
	return f.Write(out)
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return err
	}
	last, err := excelize.ColumnNumberToName(len(rows[0]))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, 20)
}
