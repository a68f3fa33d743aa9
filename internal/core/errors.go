package core

import (
	"errors"
	"fmt"
	"strings"
)

// Parse and batch sentinel errors.
var (
	ErrNoSheets        = errors.New("el archivo no contiene hojas")
	ErrEmptyFile       = errors.New("empty file")
	ErrBusy            = errors.New("batch busy: a submission is already in progress")
	ErrRowNotFound     = errors.New("row not found")
	ErrRowNotEligible  = errors.New("row not eligible for submission")
	ErrSessionNotFound = errors.New("session not found")
)

// RequiredHeaders are the display names of the columns every file must carry.
var RequiredHeaders = []string{"PuntoVenta", "Concepto", "Descripcion", "Cantidad", "PrecioUnitario"}

// MissingHeaderError is returned when no row carries the mandatory columns.
type MissingHeaderError struct {
	Required []string
}

func (e *MissingHeaderError) Error() string {
	return fmt.Sprintf("No se encontro la fila de encabezados. Columnas obligatorias: %s.",
		strings.Join(e.Required, ", "))
}

// EmptyBatchError is returned when parsing yields no usable rows.
type EmptyBatchError struct {
	Required []string
}

func (e *EmptyBatchError) Error() string {
	return fmt.Sprintf("No se encontraron filas validas. Cada fila debe tener: %s.",
		strings.Join(e.Required, ", "))
}

// FatalParseError aborts an import. Nothing is added to the batch.
type FatalParseError struct {
	Err error
}

func (e *FatalParseError) Error() string {
	return e.Err.Error()
}

func (e *FatalParseError) Unwrap() error {
	return e.Err
}

// IsFatalParse reports whether err aborted a parse.
func IsFatalParse(err error) bool {
	var fe *FatalParseError
	return errors.As(err, &fe)
}
