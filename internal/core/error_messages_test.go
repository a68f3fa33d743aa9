package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "missing header keeps its text",
			err:         &FatalParseError{Err: &MissingHeaderError{Required: RequiredHeaders}},
			wantCode:    "VAL004",
			wantMessage: "No se encontro la fila de encabezados. Columnas obligatorias: PuntoVenta, Concepto, Descripcion, Cantidad, PrecioUnitario.",
		},
		{
			name:        "empty batch keeps its text",
			err:         &FatalParseError{Err: &EmptyBatchError{Required: RequiredHeaders}},
			wantCode:    "VAL007",
			wantMessage: "No se encontraron filas validas. Cada fila debe tener: PuntoVenta, Concepto, Descripcion, Cantidad, PrecioUnitario.",
		},
		{
			name:        "no sheets",
			err:         &FatalParseError{Err: ErrNoSheets},
			wantCode:    "FILE003",
			wantMessage: "El archivo no contiene hojas",
		},
		{
			name:        "empty file",
			err:         &FatalParseError{Err: ErrEmptyFile},
			wantCode:    "FILE005",
			wantMessage: "El archivo esta vacio",
		},
		{
			name:        "busy batch",
			err:         fmt.Errorf("submit: %w", ErrBusy),
			wantCode:    "BAT001",
			wantMessage: "Hay un envio en curso para esta importacion",
		},
		{
			name:        "row not eligible",
			err:         ErrRowNotEligible,
			wantCode:    "BAT003",
			wantMessage: "La fila ya fue emitida o se esta procesando",
		},
		{
			name:        "session not found",
			err:         ErrSessionNotFound,
			wantCode:    "BAT004",
			wantMessage: "La importacion no existe o expiro",
		},
		{
			name:        "too many batches",
			err:         ErrTooManyBatches,
			wantCode:    "BAT005",
			wantMessage: "Hay demasiados envios en curso",
		},
		{
			name:        "issuance rejection keeps service message",
			err:         &IssueError{Code: "VALIDATION", Message: "Punto de venta inhabilitado"},
			wantCode:    "ISS001",
			wantMessage: "Punto de venta inhabilitado",
		},
		{
			name:        "connection refused maps correctly",
			err:         &IssueError{Code: "NETWORK", Err: errors.New("dial tcp: connection refused")},
			wantCode:    "ISS002",
			wantMessage: "No se pudo conectar con el servicio de facturacion",
		},
		{
			name:        "timeout maps correctly",
			err:         errors.New("context deadline exceeded (Client.Timeout exceeded)"),
			wantCode:    "ISS003",
			wantMessage: "El servicio de facturacion no respondio a tiempo",
		},
		{
			name:        "file too large maps correctly",
			err:         errors.New("http: request body too large"),
			wantCode:    "FILE001",
			wantMessage: "El archivo supera el tamano maximo permitido",
		},
		{
			name:        "corrupt spreadsheet maps correctly",
			err:         &FatalParseError{Err: errors.New("invalid spreadsheet: zip: not a valid zip file")},
			wantCode:    "FILE002",
			wantMessage: "El archivo no es una planilla valida",
		},
		{
			name:        "case insensitive",
			err:         errors.New("RATE LIMIT EXCEEDED"),
			wantCode:    "RATE001",
			wantMessage: "Demasiadas solicitudes",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("something went wrong"),
			wantCode:    "ERR000",
			wantMessage: "Ocurrio un error inesperado",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}

	got := FormatUserError(ErrBusy)
	if !strings.Contains(got, "(Codigo: BAT001)") {
		t.Errorf("FormatUserError() = %q, want code reference", got)
	}
	if !strings.HasSuffix(got, "Espere a que termine el envio actual") {
		t.Errorf("FormatUserError() = %q, want action at the end", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("random"), false},
		{ErrRowNotFound, true},
		{errors.New("rate limit exceeded"), true},
	}

	for _, tt := range tests {
		if got := IsUserFacing(tt.err); got != tt.want {
			t.Errorf("IsUserFacing(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
