package core

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field names a canonical input column.
type Field string

const (
	FieldPointOfSale  Field = "punto_venta"
	FieldIssuerType   Field = "tipo_emisor"
	FieldConcept      Field = "concepto"
	FieldTaxCondition Field = "condicion_iva"
	FieldDocType      Field = "tipo_documento"
	FieldDocNumber    Field = "numero_documento"
	FieldCountry      Field = "pais"
	FieldDescription  Field = "descripcion"
	FieldQuantity     Field = "cantidad"
	FieldUnitPrice    Field = "precio_unitario"
	FieldVAT          Field = "iva"
	FieldIssueDate    Field = "fecha_emision"
	FieldServiceFrom  Field = "fecha_desde"
	FieldServiceTo    Field = "fecha_hasta"
	FieldPaymentDue   Field = "fecha_vencimiento_pago"
)

// issuerHint marks any header that refers to the issuer.
const issuerHint = "emisor"

// ColumnAliases maps each field to the normalized header keys it may be read from.
type ColumnAliases map[Field][]string

// DefaultColumnAliases returns the built-in alias table. Earlier keys win.
func DefaultColumnAliases() ColumnAliases {
	return ColumnAliases{
		FieldPointOfSale:  {"puntoventa", "puntodeventa", "ptovta", "ptoventa", "pdv", "pv"},
		FieldIssuerType:   {"tipoemisor", "emisor", "condicionemisor", "tipocontribuyente", "regimenemisor"},
		FieldConcept:      {"concepto"},
		FieldTaxCondition: {"condicioniva", "condicionivareceptor", "condicionreceptor", "ivareceptor", "condicion"},
		FieldDocType:      {"tipodocumento", "tipodoc", "doctipo", "tipodocreceptor"},
		FieldDocNumber:    {"numerodocumento", "nrodocumento", "nrodoc", "documento", "docnro", "cuit", "dni"},
		FieldCountry:      {"pais", "codigopais", "paisreceptor"},
		FieldDescription:  {"descripcion", "detalle", "item", "producto"},
		FieldQuantity:     {"cantidad", "cant"},
		FieldUnitPrice:    {"preciounitario", "precio", "importeunitario", "preciounit"},
		FieldVAT:          {"iva", "alicuotaiva", "alicuota", "tasaiva", "codigoiva"},
		FieldIssueDate:    {"fechaemision", "fecha", "fechacomprobante"},
		FieldServiceFrom:  {"fechadesde", "serviciodesde", "periododesde", "desde"},
		FieldServiceTo:    {"fechahasta", "serviciohasta", "periodohasta", "hasta"},
		FieldPaymentDue:   {"fechavencimientopago", "vencimientopago", "fechavtopago", "vencimiento"},
	}
}

// Merge returns a copy of a with extra aliases appended after the built-in ones.
func (a ColumnAliases) Merge(extra ColumnAliases) ColumnAliases {
	out := make(ColumnAliases, len(a))
	for f, keys := range a {
		out[f] = append([]string(nil), keys...)
	}
	for f, keys := range extra {
		for _, k := range keys {
			k = NormalizeHeader(k)
			if k != "" && !containsString(out[f], k) {
				out[f] = append(out[f], k)
			}
		}
	}
	return out
}

// Keys returns the aliases of f.
func (a ColumnAliases) Keys(f Field) []string { return a[f] }

// headerMentionsIssuer reports whether any header key looks like an issuer column.
func (a ColumnAliases) headerMentionsIssuer(rec CanonicalRecord) bool {
	if rec.Has(a[FieldIssuerType]...) {
		return true
	}
	for k := range rec.Fields {
		if strings.Contains(k, issuerHint) {
			return true
		}
	}
	return false
}

// issuerKeys returns the issuer aliases plus any issuer-like header present in rec.
func (a ColumnAliases) issuerKeys(rec CanonicalRecord) []string {
	keys := append([]string(nil), a[FieldIssuerType]...)
	var extra []string
	for k := range rec.Fields {
		if strings.Contains(k, issuerHint) && !containsString(keys, k) {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

var knownFields = map[Field]bool{
	FieldPointOfSale: true, FieldIssuerType: true, FieldConcept: true,
	FieldTaxCondition: true, FieldDocType: true, FieldDocNumber: true,
	FieldCountry: true, FieldDescription: true, FieldQuantity: true,
	FieldUnitPrice: true, FieldVAT: true, FieldIssueDate: true,
	FieldServiceFrom: true, FieldServiceTo: true, FieldPaymentDue: true,
}

// ParseAliases decodes a YAML document of the form
//
//	punto_venta: ["Sucursal", "Pto. Vta."]
//	descripcion: ["Articulo"]
func ParseAliases(data []byte) (ColumnAliases, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse aliases: %w", err)
	}
	out := make(ColumnAliases, len(raw))
	for name, keys := range raw {
		f := Field(strings.ToLower(strings.TrimSpace(name)))
		if !knownFields[f] {
			return nil, fmt.Errorf("parse aliases: unknown field %q", name)
		}
		out[f] = keys
	}
	return out, nil
}

// LoadAliasFile reads extra aliases from path and merges them over the defaults.
// An empty path yields the defaults.
func LoadAliasFile(path string) (ColumnAliases, error) {
	defaults := DefaultColumnAliases()
	if path == "" {
		return defaults, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aliases file: %w", err)
	}
	extra, err := ParseAliases(data)
	if err != nil {
		return nil, err
	}
	return defaults.Merge(extra), nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
