package extraction

import "testing"

func TestSanitize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"no fence keeps whitespace", "  {\"a\":1}\n", "  {\"a\":1}\n"},
		{"json tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "\n  ```json\n{\"a\":1}\n```  \n", `{"a":1}`},
		{"single line", "```{\"a\":1}```", `{"a":1}`},
		{"tag then space", "```json {\"a\":1}```", `{"a":1}`},
		{"only opening fence", "```json\n{\"a\":1}", `{"a":1}`},
		{"only closing fence", "{\"a\":1}\n```", `{"a":1}`},
		{"nested fences", "```\n```json\n{\"a\":1}\n```\n```", `{"a":1}`},
		{"empty fence", "```json\n```", ""},
		{"empty", "", ""},
		{"prose", "not json", "not json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sanitize(tc.in); got != tc.want {
				t.Fatalf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"```json\n{\"invoice_number\":\"INV-1\"}\n```",
		"```\n```\n{}\n```\n```",
		"  ```python\nprint(1)\n```",
		"```",
		"``` ```",
		"text with ``` in the middle",
		"   padded   ",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		if twice := Sanitize(once); twice != once {
			t.Fatalf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
