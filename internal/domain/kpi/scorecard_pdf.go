package kpi

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// RenderScoreCardPDF writes a one-page APAR score card for employee.
func RenderScoreCardPDF(w io.Writer, employee Employee, card ScoreCard, generatedAt time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("APAR KPI Score Card", true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "APAR KPI Score Card")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Employee: %s (%s)", employee.Name, employee.Type))
	pdf.Ln(6)
	if employee.Designation != "" {
		pdf.Cell(0, 7, fmt.Sprintf("Designation: %s", employee.Designation))
		pdf.Ln(6)
	}
	scope := "Default KPIs"
	if card.Scope == ScopeProject {
		scope = "Project " + card.ProjectID
	}
	pdf.Cell(0, 7, fmt.Sprintf("Scope: %s", scope))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format("2006-01-02 15:04 MST")))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(90, 8, "KPI", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 8, "Weight %", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Score", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Weighted", "1", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, item := range card.Items {
		pdf.CellFormat(90, 8, item.KPIName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 8, fmt.Sprintf("%.2f", item.Weightage), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 8, fmt.Sprintf("%.2f", item.Score), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 8, fmt.Sprintf("%.2f", item.Weighted), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Final score: %.2f  Grade: %s", card.FinalScore, card.Grade))
	if card.Renormalized {
		pdf.Ln(7)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.Cell(0, 6, "Weights were renormalized to 100 before scoring.")
	}
	return pdf.Output(w)
}
