package telephony

import (
	"bytes"
	"encoding/xml"
	"strings"
	"unicode/utf8"
)

// TwiML is a minimal Twilio Markup Language response builder.
// Only the verbs the call scripts use are modelled.

// Verb is one instruction inside a <Response>.
type Verb interface {
	twimlVerb()
}

// Say speaks Text with a built-in voice. An empty Voice omits the attribute.
type Say struct {
	Voice string
	Text  string
}

// Play streams an audio resource.
type Play struct {
	URL string
}

// Gather collects caller input and posts it to Action.
type Gather struct {
	Input   string
	Timeout int
	Action  string
	Method  string
	Prompt  *Say
}

type Hangup struct{}

func (Say) twimlVerb()    {}
func (Play) twimlVerb()   {}
func (Gather) twimlVerb() {}
func (Hangup) twimlVerb() {}

// Document is an ordered list of verbs rendered as one <Response>.
type Document struct {
	Verbs []Verb
}

func NewDocument(verbs ...Verb) Document {
	return Document{Verbs: verbs}
}

// EscapeText escapes exactly the three reserved characters in spoken text.
// Quotes and apostrophes are left alone so the synthesizer reads them as typed.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// StripInvalidXML drops runes XML 1.0 cannot carry, such as C0 control
// characters other than tab and newlines, and bytes that are not UTF-8.
func StripInvalidXML(s string) string {
	clean := true
	for _, r := range s {
		if !IsXMLChar(r) {
			clean = false
			break
		}
	}
	if clean && utf8.ValidString(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r == utf8.RuneError && size == 1 {
			continue
		}
		if IsXMLChar(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsXMLChar reports whether r is in the XML 1.0 Char production.
func IsXMLChar(r rune) bool {
	switch {
	case r == 0x09 || r == 0x0A || r == 0x0D:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	default:
		return false
	}
}

type sayElement struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Body    string   `xml:",innerxml"`
}

func (s Say) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	return e.Encode(sayElement{Voice: s.Voice, Body: EscapeText(StripInvalidXML(s.Text))})
}

type playElement struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

func (p Play) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	return e.Encode(playElement{URL: p.URL})
}

type gatherElement struct {
	XMLName xml.Name `xml:"Gather"`
	Input   string   `xml:"input,attr,omitempty"`
	Timeout int      `xml:"timeout,attr,omitempty"`
	Action  string   `xml:"action,attr,omitempty"`
	Method  string   `xml:"method,attr,omitempty"`
	Prompt  *Say     `xml:"Say,omitempty"`
}

func (g Gather) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	return e.Encode(gatherElement{
		Input:   g.Input,
		Timeout: g.Timeout,
		Action:  g.Action,
		Method:  g.Method,
		Prompt:  g.Prompt,
	})
}

type hangupElement struct {
	XMLName xml.Name `xml:"Hangup"`
}

func (Hangup) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	return e.Encode(hangupElement{})
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []Verb
}

// Render returns the document with an XML declaration.
func (d Document) Render() (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(twimlResponse{Verbs: d.Verbs}); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const fallbackText = "Sorry, an unexpected error occurred."

// FallbackDocument apologises and ends the call.
func FallbackDocument() Document {
	return NewDocument(Say{Voice: "alice", Text: fallbackText}, Hangup{})
}

// FallbackXML is the pre-rendered fallback, used when rendering itself fails.
const FallbackXML = xml.Header + `<Response>
  <Say voice="alice">` + fallbackText + `</Say>
  <Hangup></Hangup>
</Response>`

// RenderOrFallback never returns an empty or ill-formed document.
func RenderOrFallback(d Document) string {
	out, err := d.Render()
	if err != nil || out == "" {
		return FallbackXML
	}
	return out
}
