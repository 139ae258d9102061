package search

import "testing"

func TestFlattenHTML_PlainTextPassthrough(t *testing.T) {
	s := "Plain text with no markup, 1 > 0."
	if got := FlattenHTML(s); got != s {
		t.Errorf("Plain text must pass through, got %q", got)
	}
}

func TestFlattenHTML_StripsTags(t *testing.T) {
	s := "<p>The <b>Nile</b> is long.</p>"
	if got := FlattenHTML(s); got != "The Nile is long." {
		t.Errorf("Expected flattened text, got %q", got)
	}
}

func TestFlattenHTML_SkipsScriptAndStyle(t *testing.T) {
	s := `<div>visible<script>var x = "hidden";</script><style>.a{}</style></div>`
	got := FlattenHTML(s)
	if got != "visible" {
		t.Errorf("Script/style content must be dropped, got %q", got)
	}
}

func TestFlattenHTML_JoinsWithSpaces(t *testing.T) {
	s := "<ul><li>one</li><li>two</li></ul>"
	if got := FlattenHTML(s); got != "one two" {
		t.Errorf("Expected space-joined text, got %q", got)
	}
}

func TestResponse_HasData(t *testing.T) {
	var nilResp *Response
	if nilResp.HasData() {
		t.Error("nil response has no data")
	}
	if (&Response{}).HasData() {
		t.Error("empty response has no data")
	}
	if !(&Response{Answer: "x"}).HasData() {
		t.Error("answer counts as data")
	}
	if !(&Response{Results: []Result{{URL: "u"}}}).HasData() {
		t.Error("results count as data")
	}
}
