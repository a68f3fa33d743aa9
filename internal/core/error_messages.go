package core

// error_messages.go maps technical errors to messages shown to users.
//
// Every message carries a code that users can quote to support. Codes are
// grouped by category:
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Not a readable spreadsheet (corrupt xlsx, malformed CSV)
//	FILE003 - Spreadsheet without sheets
//	FILE004 - No file in the request
//	FILE005 - Empty file
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL004 - Header row not found; message is the parse error verbatim
//	VAL007 - No usable rows; message is the parse error verbatim
//
// # Batch Errors (BAT001-BAT099)
//
//	BAT001 - A submission is already running for this session
//	BAT002 - Row not found
//	BAT003 - Row already issued or in progress
//	BAT004 - Session expired or unknown
//	BAT005 - Too many batches running on the server
//
// # Issuance Errors (ISS001-ISS099)
//
//	ISS001 - Rejected by the issuance service; message is the service's own
//	ISS002 - Issuance service unreachable
//	ISS003 - Issuance service timed out
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests from this client
//
// ERR000 is the fallback; support should check logs for the technical error.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage is a user-facing error with an action hint and support code.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// First match wins, so specific patterns go before general ones.
var errorPatterns = []errorPattern{
	// =========================================================================
	// File Errors
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "El archivo supera el tamano maximo permitido",
			Action:  "Divida la planilla en archivos mas chicos",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "El archivo supera el tamano maximo permitido",
			Action:  "Divida la planilla en archivos mas chicos",
			Code:    "FILE001",
		},
	},
	{
		pattern: "not a valid zip file",
		msg: UserMessage{
			Message: "El archivo no es una planilla valida",
			Action:  "Guarde el archivo como .xlsx o .csv e intente de nuevo",
			Code:    "FILE002",
		},
	},
	{
		pattern: "invalid spreadsheet",
		msg: UserMessage{
			Message: "El archivo no es una planilla valida",
			Action:  "Guarde el archivo como .xlsx o .csv e intente de nuevo",
			Code:    "FILE002",
		},
	},
	{
		pattern: "parse csv",
		msg: UserMessage{
			Message: "El archivo CSV no se pudo leer",
			Action:  "Verifique que las columnas esten separadas por coma o punto y coma",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No se selecciono ningun archivo",
			Action:  "Seleccione una planilla para importar",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "El archivo esta vacio",
			Action:  "Seleccione una planilla con filas de datos",
			Code:    "FILE005",
		},
	},

	// =========================================================================
	// Issuance Connectivity
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "No se pudo conectar con el servicio de facturacion",
			Action:  "Intente de nuevo en unos minutos",
			Code:    "ISS002",
		},
	},
	{
		pattern: "no such host",
		msg: UserMessage{
			Message: "No se pudo conectar con el servicio de facturacion",
			Action:  "Verifique la configuracion del servicio",
			Code:    "ISS002",
		},
	},
	{
		pattern: "deadline exceeded",
		msg: UserMessage{
			Message: "El servicio de facturacion no respondio a tiempo",
			Action:  "Reintente la fila cuando el servicio este disponible",
			Code:    "ISS003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "El servicio de facturacion no respondio a tiempo",
			Action:  "Reintente la fila cuando el servicio este disponible",
			Code:    "ISS003",
		},
	},

	// =========================================================================
	// Rate Limiting
	// =========================================================================
	{
		pattern: "rate limit exceeded",
		msg: UserMessage{
			Message: "Demasiadas solicitudes",
			Action:  "Espere un momento e intente de nuevo",
			Code:    "RATE001",
		},
	},
}

// sentinelMessages are matched with errors.Is before any text pattern.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrNoSheets, UserMessage{
		Message: "El archivo no contiene hojas",
		Action:  "Verifique que la planilla tenga al menos una hoja con datos",
		Code:    "FILE003",
	}},
	{ErrEmptyFile, UserMessage{
		Message: "El archivo esta vacio",
		Action:  "Seleccione una planilla con filas de datos",
		Code:    "FILE005",
	}},
	{ErrBusy, UserMessage{
		Message: "Hay un envio en curso para esta importacion",
		Action:  "Espere a que termine el envio actual",
		Code:    "BAT001",
	}},
	{ErrRowNotFound, UserMessage{
		Message: "La fila no existe",
		Action:  "Vuelva a cargar la planilla",
		Code:    "BAT002",
	}},
	{ErrRowNotEligible, UserMessage{
		Message: "La fila ya fue emitida o se esta procesando",
		Action:  "Solo se pueden enviar filas pendientes o con error",
		Code:    "BAT003",
	}},
	{ErrSessionNotFound, UserMessage{
		Message: "La importacion no existe o expiro",
		Action:  "Inicie una nueva importacion",
		Code:    "BAT004",
	}},
	{ErrTooManyBatches, UserMessage{
		Message: "Hay demasiados envios en curso",
		Action:  "Espere un momento e intente de nuevo",
		Code:    "BAT005",
	}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "Ocurrio un error inesperado",
	Action:  "Intente de nuevo o contacte a soporte",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Parse
// errors keep their own text, issuance rejections keep the service's message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var mh *MissingHeaderError
	if errors.As(err, &mh) {
		return UserMessage{
			Message: mh.Error(),
			Action:  "Use la plantilla de importacion o agregue los encabezados faltantes",
			Code:    "VAL004",
		}
	}
	var eb *EmptyBatchError
	if errors.As(err, &eb) {
		return UserMessage{
			Message: eb.Error(),
			Action:  "Complete el punto de venta y la descripcion de cada fila",
			Code:    "VAL007",
		}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	if ie, ok := asIssueError(err); ok && ie.Message != "" {
		return UserMessage{
			Message: ie.Message,
			Action:  "Corrija los datos de la fila y vuelva a enviarla",
			Code:    "ISS001",
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Codigo: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Codigo: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
