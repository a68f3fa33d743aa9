package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestErrorAlert(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorAlert("Fila <2> invalida", "Corrija la fila", "ISS001").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{"Fila &lt;2&gt; invalida", "Corrija la fila", "Codigo: ISS001", `role="alert"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestErrorAlert_OmitsEmptyParts(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorAlert("Error", "", "").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(buf.String(), "alert-action") || strings.Contains(buf.String(), "alert-code") {
		t.Errorf("unexpected optional parts: %s", buf.String())
	}
}
