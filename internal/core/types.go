package core

import (
	"github.com/shopspring/decimal"
)

// RawTable is one decoded sheet: rows of untyped cells. A cell holds a
// string, float64, bool, time.Time or nil.
type RawTable [][]any

// HeaderMap maps a column index to its normalized header key.
type HeaderMap map[int]string

// CanonicalRecord is one non-empty data row keyed by normalized header.
type CanonicalRecord struct {
	SourceRow int
	Fields    map[string]any
}

// Value returns the first non-empty value found under any of the given keys.
func (r CanonicalRecord) Value(keys ...string) any {
	for _, k := range keys {
		v, ok := r.Fields[k]
		if !ok || isBlank(v) {
			continue
		}
		return v
	}
	return nil
}

// Has reports whether any of the keys is a column of the record.
func (r CanonicalRecord) Has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := r.Fields[k]; ok {
			return true
		}
	}
	return false
}

// RowStatus is the lifecycle state of a ParsedRow.
type RowStatus string

const (
	StatusPending    RowStatus = "pending"
	StatusProcessing RowStatus = "processing"
	StatusSuccess    RowStatus = "success"
	StatusError      RowStatus = "error"
)

// Eligible reports whether a row in this state may be submitted.
func (s RowStatus) Eligible() bool {
	return s == StatusPending || s == StatusError
}

// Fixed currency settings for every draft.
const (
	LocalCurrency       = "PES"
	LocalExchangeRate   = 1
	placeholderTaxIDLen = 11
	placeholderDocLen   = 8
)

// Recipient identifies the buyer of an invoice.
type Recipient struct {
	TaxCondition   TaxCondition `json:"condicionIva"`
	DocumentType   DocType      `json:"tipoDocumento"`
	DocumentNumber string       `json:"numeroDocumento"`
	Country        Country      `json:"pais"`
}

// LineItem is the single item carried by a draft.
type LineItem struct {
	Description string          `json:"descripcion"`
	Quantity    decimal.Decimal `json:"cantidad"`
	UnitPrice   decimal.Decimal `json:"precioUnitario"`
	VAT         VATCode         `json:"iva"`
}

// ServicePeriod is present only on SERVICIOS drafts.
type ServicePeriod struct {
	From       string `json:"fechaDesde"`
	To         string `json:"fechaHasta"`
	PaymentDue string `json:"fechaVencimientoPago"`
}

// InvoiceDraft is the canonical issuance request built from one row.
type InvoiceDraft struct {
	PointOfSale  int            `json:"puntoVenta"`
	IssueDate    string         `json:"fechaEmision"`
	Concept      Concept        `json:"concepto"`
	Recipient    Recipient      `json:"receptor"`
	Item         LineItem       `json:"item"`
	Currency     string         `json:"moneda"`
	ExchangeRate int            `json:"cotizacion"`
	Service      *ServicePeriod `json:"servicio,omitempty"`
}

// Payload is what gets submitted for a row. It is never modified after assembly.
type Payload struct {
	IssuerType IssuerType   `json:"tipoEmisor"`
	Draft      InvoiceDraft `json:"comprobante"`
}

// ParsedRow is the unit of work of a batch.
type ParsedRow struct {
	ID        string       `json:"id"`
	SourceRow int          `json:"sourceRow"`
	Status    RowStatus    `json:"status"`
	Message   string       `json:"message,omitempty"`
	Payload   Payload      `json:"payload"`
	Response  *IssueResult `json:"response,omitempty"`
}

// clone returns a copy that shares nothing mutable with r.
func (r ParsedRow) clone() ParsedRow {
	if r.Payload.Draft.Service != nil {
		sp := *r.Payload.Draft.Service
		r.Payload.Draft.Service = &sp
	}
	if r.Response != nil {
		resp := *r.Response
		r.Response = &resp
	}
	return r
}

// Counts aggregates row statuses.
type Counts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Success    int `json:"success"`
	Error      int `json:"error"`
}

// ParseResult is the outcome of a successful parse.
type ParseResult struct {
	Rows     []ParsedRow
	Warnings []string
}
