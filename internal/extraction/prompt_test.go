package extraction

import (
	"strings"
	"testing"

	"invoicedesk/internal/model"
)

func TestBuildPromptNamesEveryField(t *testing.T) {
	prompt := BuildPrompt(nil)

	keys := append(append([]string{}, model.RequiredFields...), model.OptionalFields...)
	keys = append(keys, model.FieldLineItems, model.FieldOCRQualityScore, model.FieldMultipleInvoices)
	for _, key := range keys {
		if !strings.Contains(prompt, `"`+key+`"`) {
			t.Errorf("prompt does not mention %q", key)
		}
	}
}

func TestBuildPromptEmbedsLinesInOrder(t *testing.T) {
	lines := []string{"ACME Traders", "Invoice No: INV-001", "Total: 1,200.00"}
	prompt := BuildPrompt(lines)

	if !strings.HasSuffix(prompt, "ACME Traders\nInvoice No: INV-001\nTotal: 1,200.00\n") {
		t.Fatalf("lines not embedded verbatim at the end of the prompt:\n%s", prompt)
	}
}
