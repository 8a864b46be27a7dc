package strategy

import "testing"

func TestRepeatHinterDetectsProductCards(t *testing.T) {
	body := `<html><body><div class="product-grid">` +
		`<div class="product-card">A</div>` +
		`<div class="product-card">B</div>` +
		`<div class="product-card">C</div>` +
		`<div class="product-card">D</div>` +
		`</div></body></html>`

	hint, ok := NewRepeatHinter().Hint(body)
	if !ok {
		t.Fatal("Hint() ok = false, want true")
	}
	if hint.ArrayName != "products" {
		t.Errorf("ArrayName = %q, want products", hint.ArrayName)
	}
	if hint.Count != 4 {
		t.Errorf("Count = %d, want 4", hint.Count)
	}
}

func TestRepeatHinterBelowThresholdReturnsFalse(t *testing.T) {
	body := `<html><body><div class="product-card">A</div></body></html>`
	if _, ok := NewRepeatHinter().Hint(body); ok {
		t.Error("Hint() ok = true, want false below MinRepeats")
	}
}

func TestRepeatHinterSkipsNonHTML(t *testing.T) {
	if _, ok := NewRepeatHinter().Hint(`{"items":[1,2,3,4]}`); ok {
		t.Error("Hint() ok = true for a JSON body, want false")
	}
}

func TestRepeatHinterTableRows(t *testing.T) {
	body := `<table><tbody>` +
		`<tr><td>1</td></tr><tr><td>2</td></tr><tr><td>3</td></tr>` +
		`</tbody></table>`
	hint, ok := NewRepeatHinter().Hint(body)
	if !ok {
		t.Fatal("Hint() ok = false, want true")
	}
	if hint.Count != 3 {
		t.Errorf("Count = %d, want 3", hint.Count)
	}
}
