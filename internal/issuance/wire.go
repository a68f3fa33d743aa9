package issuance

import (
	"encoding/json"

	"github.com/JonMunkholm/facturador/internal/core"
	"github.com/shopspring/decimal"
)

// Wire shapes of the issuance API. Amounts travel as JSON numbers with the
// exact decimal digits of the spreadsheet.

type wireRequest struct {
	IssuerType core.IssuerType `json:"tipoEmisor"`
	Draft      wireDraft       `json:"comprobante"`
}

type wireDraft struct {
	PointOfSale  int                 `json:"puntoVenta"`
	IssueDate    string              `json:"fechaEmision"`
	Concept      core.Concept        `json:"concepto"`
	Recipient    core.Recipient      `json:"receptor"`
	Item         wireItem            `json:"item"`
	Currency     string              `json:"moneda"`
	ExchangeRate int                 `json:"cotizacion"`
	Service      *core.ServicePeriod `json:"servicio,omitempty"`
}

type wireItem struct {
	Description string       `json:"descripcion"`
	Quantity    json.Number  `json:"cantidad"`
	UnitPrice   json.Number  `json:"precioUnitario"`
	VAT         core.VATCode `json:"iva"`
}

type wireResult struct {
	AuthCode       string     `json:"cae"`
	AuthCodeExpiry string     `json:"caeVencimiento"`
	DocumentNumber flexString `json:"numeroComprobante"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	if string(data) == "null" {
		*s = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

func (s flexString) String() string { return string(s) }

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func toWire(p core.Payload) wireRequest {
	d := p.Draft
	return wireRequest{
		IssuerType: p.IssuerType,
		Draft: wireDraft{
			PointOfSale: d.PointOfSale,
			IssueDate:   d.IssueDate,
			Concept:     d.Concept,
			Recipient:   d.Recipient,
			Item: wireItem{
				Description: d.Item.Description,
				Quantity:    number(d.Item.Quantity),
				UnitPrice:   number(d.Item.UnitPrice),
				VAT:         d.Item.VAT,
			},
			Currency:     d.Currency,
			ExchangeRate: d.ExchangeRate,
			Service:      d.Service,
		},
	}
}
