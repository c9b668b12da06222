package utils

import (
	"embed"
	"fmt"
	"io"
	"strconv"

	"greenexchange/models"

	"github.com/go-pdf/fpdf"
)

// DejaVu covers Latin, Greek, Cyrillic and the rupee sign. fpdf does no
// glyph shaping, so Indic scripts are not rendered.
//
//go:embed fonts/DejaVuSansCondensed.ttf fonts/DejaVuSansCondensed-Bold.ttf
var certificateFonts embed.FS

const certificateFont = "DejaVu"

// CertificateFilename is the download name for a tree's certificate.
func CertificateFilename(tree *models.Tree) string {
	return fmt.Sprintf("Tree-Certificate-%s.pdf", tree.ID.Hex())
}

// RenderCertificate writes the plantation certificate of tree to w as a PDF.
func RenderCertificate(w io.Writer, tree *models.Tree) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Tree Plantation Certificate", true)
	pdf.SetAuthor("GreenExchange", true)
	if err := addCertificateFonts(pdf); err != nil {
		return err
	}

	pdf.AddPage()
	pdf.SetFont(certificateFont, "B", 20)
	pdf.CellFormat(0, 14, "Tree Plantation Certificate", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont(certificateFont, "", 14)
	lines := []string{
		fmt.Sprintf("Location: %s, %s", tree.State, tree.Distric),
		"Price: ₹" + strconv.FormatFloat(tree.Price, 'f', -1, 64),
		"Status: " + string(tree.Status),
		"Certificate ID: " + tree.ID.Hex(),
	}
	for _, line := range lines {
		pdf.CellFormat(0, 9, line, "", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
	pdf.MultiCell(0, 8, "This certificate verifies the plantation and ownership of the tree.", "", "L", false)

	return pdf.Output(w)
}

func addCertificateFonts(pdf *fpdf.Fpdf) error {
	for style, file := range map[string]string{
		"":  "fonts/DejaVuSansCondensed.ttf",
		"B": "fonts/DejaVuSansCondensed-Bold.ttf",
	} {
		data, err := certificateFonts.ReadFile(file)
		if err != nil {
			return fmt.Errorf("load certificate font: %w", err)
		}
		pdf.AddUTF8FontFromBytes(certificateFont, style, data)
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("load certificate font: %w", err)
	}
	return nil
}
