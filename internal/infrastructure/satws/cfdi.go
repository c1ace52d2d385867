package satws

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mxsuite/backend/internal/domain/sat"
)

// comprobante maps the attributes we need from a fiscal document XML.
// Only the stamped UUID, parties, issue date and total are extracted;
// the full payload is kept verbatim for the staging area.
type comprobante struct {
	XMLName xml.Name `xml:"Comprobante"`
	Fecha   string   `xml:"Fecha,attr"`
	Total   string   `xml:"Total,attr"`
	Emisor  struct {
		RFC    string `xml:"Rfc,attr"`
		Nombre string `xml:"Nombre,attr"`
	} `xml:"Emisor"`
	Receptor struct {
		RFC string `xml:"Rfc,attr"`
	} `xml:"Receptor"`
	Complemento struct {
		Timbre struct {
			UUID string `xml:"UUID,attr"`
		} `xml:"TimbreFiscalDigital"`
	} `xml:"Complemento"`
}

const cfdiDateLayout = "2006-01-02T15:04:05"

// parseDocument extracts a raw document from one XML entry of a package
func parseDocument(payload []byte) (sat.RawDocument, error) {
	var doc comprobante
	if err := xml.Unmarshal(payload, &doc); err != nil {
		return sat.RawDocument{}, fmt.Errorf("satws: malformed document XML: %w", err)
	}
	if doc.Complemento.Timbre.UUID == "" {
		return sat.RawDocument{}, fmt.Errorf("satws: document has no stamped UUID")
	}

	issuedAt, err := time.Parse(cfdiDateLayout, doc.Fecha)
	if err != nil {
		return sat.RawDocument{}, fmt.Errorf("satws: invalid issue date %q: %w", doc.Fecha, err)
	}

	total, err := decimal.NewFromString(doc.Total)
	if err != nil {
		return sat.RawDocument{}, fmt.Errorf("satws: invalid total %q: %w", doc.Total, err)
	}

	return sat.RawDocument{
		FiscalUUID:  doc.Complemento.Timbre.UUID,
		IssuerRFC:   doc.Emisor.RFC,
		IssuerName:  doc.Emisor.Nombre,
		ReceiverRFC: doc.Receptor.RFC,
		IssuedAt:    issuedAt,
		Total:       total,
		XML:         string(payload),
	}, nil
}
