package model

import "time"

// Symbology identifies the barcode format reported by the decoder.
type Symbology string

const (
	SymbologyUPCA       Symbology = "UPC_A"
	SymbologyUPCE       Symbology = "UPC_E"
	SymbologyEAN13      Symbology = "EAN13"
	SymbologyEAN8       Symbology = "EAN8"
	SymbologyCode128    Symbology = "CODE128"
	SymbologyCode39     Symbology = "CODE39"
	SymbologyCode93     Symbology = "CODE93"
	SymbologyCodabar    Symbology = "CODABAR"
	SymbologyDataMatrix Symbology = "DATAMATRIX"
	SymbologyPDF417     Symbology = "PDF417"
	SymbologyQR         Symbology = "QR"
)

// Numeric reports whether the symbology belongs to the UPC/EAN retail
// family, which carries digit-only payloads.
func (s Symbology) Numeric() bool {
	switch s {
	case SymbologyUPCA, SymbologyUPCE, SymbologyEAN13, SymbologyEAN8:
		return true
	default:
		return false
	}
}

// DisplayName returns the human-readable name used in scan records.
func (s Symbology) DisplayName() string {
	switch s {
	case SymbologyUPCA:
		return "UPC-A"
	case SymbologyUPCE:
		return "UPC-E"
	case SymbologyEAN13:
		return "EAN-13"
	case SymbologyEAN8:
		return "EAN-8"
	case SymbologyCode128:
		return "Code 128"
	case SymbologyCode39:
		return "Code 39"
	case SymbologyCode93:
		return "Code 93"
	case SymbologyCodabar:
		return "Codabar"
	case SymbologyDataMatrix:
		return "Data Matrix"
	case SymbologyPDF417:
		return "PDF417"
	case SymbologyQR:
		return "QR Code"
	default:
		return string(s)
	}
}

// BarcodeReading is a single accepted decode. Immutable once created.
type BarcodeReading struct {
	Symbol     string    `json:"symbol"`
	Canonical  string    `json:"canonical"`
	Symbology  Symbology `json:"symbology"`
	CapturedAt time.Time `json:"captured_at"`
}

// Product is a catalog entry. The scan pipeline holds a read-only
// reference per assessment; the catalog collaborator owns the record.
type Product struct {
	ID                string     `json:"id"`
	Barcode           string     `json:"barcode"`
	Name              string     `json:"name"`
	Brand             string     `json:"brand,omitempty"`
	IngredientsText   string     `json:"ingredients_text"`
	DeclaredAllergens []string   `json:"declared_allergens,omitempty"`
	DataQualityScore  int        `json:"data_quality_score"`
	VerificationCount int        `json:"verification_count"`
	LastVerifiedAt    *time.Time `json:"last_verified_at,omitempty"`
}
