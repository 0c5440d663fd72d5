package telephony

import (
	"encoding/xml"
	"strings"
	"testing"
)

// parsed mirrors the rendered structure closely enough for assertions.
type parsed struct {
	XMLName xml.Name `xml:"Response"`
	Says    []struct {
		Voice string `xml:"voice,attr"`
		Text  string `xml:",chardata"`
	} `xml:"Say"`
	Plays  []string `xml:"Play"`
	Gather *struct {
		Input   string `xml:"input,attr"`
		Timeout string `xml:"timeout,attr"`
		Action  string `xml:"action,attr"`
		Method  string `xml:"method,attr"`
		Say     string `xml:"Say"`
	} `xml:"Gather"`
	Hangup *struct{} `xml:"Hangup"`
}

func mustParse(t *testing.T, doc string) parsed {
	t.Helper()
	var p parsed
	if err := xml.Unmarshal([]byte(doc), &p); err != nil {
		t.Fatalf("document is not well-formed: %v\n%s", err, doc)
	}
	return p
}

func TestRenderSayEscapesReservedCharacters(t *testing.T) {
	out, err := NewDocument(Say{Voice: "woman", Text: `Tom & Jerry <3 "quotes" it's`}).Render()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Fatalf("expected xml declaration: %s", out)
	}
	want := `<Say voice="woman">Tom &amp; Jerry &lt;3 "quotes" it's</Say>`
	if !strings.Contains(out, want) {
		t.Fatalf("expected %q in %s", want, out)
	}
	p := mustParse(t, out)
	if p.Says[0].Text != `Tom & Jerry <3 "quotes" it's` {
		t.Fatalf("unexpected round trip %q", p.Says[0].Text)
	}
}

func TestRenderGather(t *testing.T) {
	doc := NewDocument(
		Say{Text: "Hi"},
		Gather{
			Input:   "speech",
			Timeout: 5,
			Action:  "https://x/api/twiml-conversation?agentId=a&conversationId=c",
			Method:  "POST",
			Prompt:  &Say{Text: "Please speak after the beep."},
		},
	)
	out, err := doc.Render()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(out, `action="https://x/api/twiml-conversation?agentId=a&amp;conversationId=c"`) {
		t.Fatalf("expected escaped action attr: %s", out)
	}
	if !strings.Contains(out, "<Say>Hi</Say>") {
		t.Fatalf("expected Say without voice attr: %s", out)
	}
	p := mustParse(t, out)
	if p.Gather == nil || p.Gather.Input != "speech" || p.Gather.Timeout != "5" || p.Gather.Method != "POST" {
		t.Fatalf("unexpected gather %+v", p.Gather)
	}
	if p.Gather.Say != "Please speak after the beep." {
		t.Fatalf("unexpected prompt %q", p.Gather.Say)
	}
}

func TestRenderPlay(t *testing.T) {
	out, err := NewDocument(Play{URL: "https://x/api/audio/message_1.mp3?voice=Rachel"}).Render()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	p := mustParse(t, out)
	if len(p.Plays) != 1 || p.Plays[0] != "https://x/api/audio/message_1.mp3?voice=Rachel" {
		t.Fatalf("unexpected plays %v", p.Plays)
	}
}

func TestFallbackMatchesRenderedFallback(t *testing.T) {
	out, err := FallbackDocument().Render()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != FallbackXML {
		t.Fatalf("pre-rendered fallback drifted:\n%s\nvs\n%s", out, FallbackXML)
	}
	p := mustParse(t, FallbackXML)
	if p.Hangup == nil || p.Says[0].Voice != "alice" {
		t.Fatalf("expected apology and hangup, got %+v", p)
	}
}

func TestRenderSayDropsCharactersXMLCannotCarry(t *testing.T) {
	text := "Hi\x01there\x00 \x1bfriend \xff&\tbye\n"
	out, err := NewDocument(Say{Text: text}, Gather{Prompt: &Say{Text: "again\x02"}}).Render()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	p := mustParse(t, out)
	if len(p.Says) != 1 || p.Says[0].Text != "Hithere friend &\tbye\n" {
		t.Fatalf("unexpected text %q", p.Says[0].Text)
	}
	if p.Gather == nil || p.Gather.Say != "again" {
		t.Fatalf("unexpected prompt %+v", p.Gather)
	}
	if !strings.Contains(out, "&amp;") {
		t.Fatalf("expected ampersand still escaped: %s", out)
	}
}

func TestStripInvalidXML(t *testing.T) {
	cases := map[string]string{
		"plain":            "plain",
		"a\x01b":           "ab",
		"tab\tnl\ncr\r":    "tab\tnl\ncr\r",
		"bad\xffutf8":      "badutf8",
		"emoji \U0001F600": "emoji \U0001F600",
		"\uFFFE\uFFFF":     "",
	}
	for in, want := range cases {
		if got := StripInvalidXML(in); got != want {
			t.Fatalf("StripInvalidXML(%q) = %q, want %q", in, got, want)
		}
	}
}
