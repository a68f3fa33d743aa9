package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Assembler turns a decoded sheet into ParsedRows.
type Assembler struct {
	aliases ColumnAliases
	now     func() time.Time
	newID   func() string
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithAliases replaces the column alias table.
func WithAliases(aliases ColumnAliases) AssemblerOption {
	return func(a *Assembler) { a.aliases = aliases }
}

// WithClock sets the clock used for the default issue date.
func WithClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) { a.now = now }
}

// WithIDGenerator sets the row id generator.
func WithIDGenerator(newID func() string) AssemblerOption {
	return func(a *Assembler) { a.newID = newID }
}

// NewAssembler creates an Assembler with the built-in aliases.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		aliases: DefaultColumnAliases(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Parse locates the header, normalizes rows and assembles one ParsedRow per
// usable record. Errors are always *FatalParseError.
func (a *Assembler) Parse(table RawTable) (*ParseResult, error) {
	headerIdx, header, err := LocateHeader(table)
	if err != nil {
		return nil, &FatalParseError{Err: err}
	}

	var warnings Warnings
	var rows []ParsedRow
	for _, rec := range NormalizeRows(table, headerIdx, header) {
		if row, ok := a.Assemble(rec, &warnings); ok {
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		return nil, &FatalParseError{Err: &EmptyBatchError{Required: RequiredHeaders}}
	}

	return &ParseResult{Rows: rows, Warnings: warnings}, nil
}

// Assemble applies the business rules to one record. It returns false when the
// row has no point of sale or no description; the reason is recorded in w.
func (a *Assembler) Assemble(rec CanonicalRecord, w *Warnings) (ParsedRow, bool) {
	label := rowLabel(rec.SourceRow)
	keys := a.aliases.Keys

	pos, ok := AsInteger(rec.Value(keys(FieldPointOfSale)...))
	if !ok || pos <= 0 {
		w.Addf("%s: falta el punto de venta, la fila se omitira.", label)
		return ParsedRow{}, false
	}

	// A file without any issuer column gets the default silently; an issuer
	// column that is present but blank still warns.
	issuer := IssuerMonotributo
	if a.aliases.headerMentionsIssuer(rec) {
		issuer = ResolveIssuerType(rec.Value(a.aliases.issuerKeys(rec)...), label, w)
	}

	concept := ResolveConcept(rec.Value(keys(FieldConcept)...), label, w)
	cond := ResolveTaxCondition(rec.Value(keys(FieldTaxCondition)...), label, w)
	docType := ResolveDocType(rec.Value(keys(FieldDocType)...), label, w, cond)

	country := CountryArgentina
	if rec.Has(keys(FieldCountry)...) {
		country = ResolveCountry(rec.Value(keys(FieldCountry)...), label, w)
	}

	docText, _ := AsText(rec.Value(keys(FieldDocNumber)...))
	docNumber := onlyDigits(docText)
	if docNumber == "" {
		size := placeholderDocLen
		if docType.TaxIDStyle() {
			size = placeholderTaxIDLen
		}
		docNumber = strings.Repeat("0", size)
		w.Addf("%s: numero de documento vacio, se usara %s.", label, docNumber)
	}

	description, ok := AsText(rec.Value(keys(FieldDescription)...))
	if !ok {
		w.Addf("%s: falta la descripcion, la fila se omitira.", label)
		return ParsedRow{}, false
	}

	quantity, ok := AsDecimal(rec.Value(keys(FieldQuantity)...))
	if !ok || !quantity.IsPositive() {
		quantity = decimal.NewFromInt(1)
		w.Addf("%s: cantidad invalida, se usara 1.", label)
	}

	price, ok := AsDecimal(rec.Value(keys(FieldUnitPrice)...))
	if !ok || price.IsNegative() {
		price = decimal.Zero
		w.Addf("%s: precio unitario invalido, se usara 0.", label)
	}

	vat := ResolveVATCode(rec.Value(keys(FieldVAT)...), label, w)

	issueDate, ok := AsDate(rec.Value(keys(FieldIssueDate)...))
	if !ok {
		issueDate = a.now().Format(DateLayout)
	}

	var service *ServicePeriod
	if concept == ConceptServicios {
		from := a.serviceDate(rec, FieldServiceFrom, "fecha desde del servicio", issueDate, label, w)
		to := a.serviceDate(rec, FieldServiceTo, "fecha hasta del servicio", from, label, w)
		due := a.serviceDate(rec, FieldPaymentDue, "fecha de vencimiento de pago", to, label, w)
		service = &ServicePeriod{From: from, To: to, PaymentDue: due}
	} else {
		for _, f := range []struct {
			field Field
			name  string
		}{
			{FieldServiceFrom, "fecha desde del servicio"},
			{FieldServiceTo, "fecha hasta del servicio"},
			{FieldPaymentDue, "fecha de vencimiento de pago"},
		} {
			if rec.Value(keys(f.field)...) != nil {
				w.Addf("%s: %s descartada, el concepto %s no la admite.", label, f.name, concept)
			}
		}
	}

	return ParsedRow{
		ID:        a.newID(),
		SourceRow: rec.SourceRow,
		Status:    StatusPending,
		Payload: Payload{
			IssuerType: issuer,
			Draft: InvoiceDraft{
				PointOfSale: pos,
				IssueDate:   issueDate,
				Concept:     concept,
				Recipient: Recipient{
					TaxCondition:   cond,
					DocumentType:   docType,
					DocumentNumber: docNumber,
					Country:        country,
				},
				Item: LineItem{
					Description: description,
					Quantity:    quantity,
					UnitPrice:   price,
					VAT:         vat,
				},
				Currency:     LocalCurrency,
				ExchangeRate: LocalExchangeRate,
				Service:      service,
			},
		},
	}, true
}

// serviceDate reads a service-period date, falling back to def with a warning.
func (a *Assembler) serviceDate(rec CanonicalRecord, f Field, name, def, label string, w *Warnings) string {
	raw := rec.Value(a.aliases.Keys(f)...)
	if raw == nil {
		w.Addf("%s: falta la %s, se usara %s.", label, name, def)
		return def
	}
	date, ok := AsDate(raw)
	if !ok {
		text, _ := AsText(raw)
		w.Addf("%s: %s %q invalida, se usara %s.", label, name, text, def)
		return def
	}
	return date
}

func rowLabel(sourceRow int) string {
	return fmt.Sprintf("Fila %d", sourceRow)
}
