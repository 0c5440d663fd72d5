package instructions

import (
	"context"
	"encoding/xml"
	"errors"
	"strings"
	"testing"
	"time"

	"voice-relay/internal/calls"
	"voice-relay/internal/speech"
	"voice-relay/internal/telephony"
)

type script struct {
	XMLName xml.Name `xml:"Response"`
	Says    []struct {
		Voice string `xml:"voice,attr"`
		Text  string `xml:",chardata"`
	} `xml:"Say"`
	Plays  []string  `xml:"Play"`
	Hangup *struct{} `xml:"Hangup"`
}

func parseScript(t *testing.T, out string) script {
	t.Helper()
	if out == "" {
		t.Fatalf("expected a document")
	}
	var s script
	if err := xml.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("document is not well-formed: %v\n%s", err, out)
	}
	return s
}

func assertFallback(t *testing.T, out string) {
	t.Helper()
	s := parseScript(t, out)
	if s.Hangup == nil || len(s.Says) != 1 || s.Says[0].Text != "Sorry, an unexpected error occurred." {
		t.Fatalf("expected fallback script, got %s", out)
	}
}

type fakeSynth struct {
	audio []byte
	err   error
	calls int
}

func (f *fakeSynth) Name() string { return "fake" }

func (f *fakeSynth) Synthesize(ctx context.Context, req speech.Request) ([]byte, error) {
	f.calls++
	return f.audio, f.err
}

type panicProducer struct{}

func (panicProducer) Produce(ctx context.Context, req Request) (telephony.Document, error) {
	panic("boom")
}

type errProducer struct{}

func (errProducer) Produce(ctx context.Context, req Request) (telephony.Document, error) {
	return telephony.Document{}, errors.New("agent down")
}

func seed(repo *calls.MemoryRepo, body, voice string, p calls.Provider) calls.Call {
	c := calls.Call{ID: "m1", Body: body, To: "+14024774105", Status: calls.StatusInProgress, Voice: voice, Provider: p, CreatedAt: time.Now()}
	repo.Put(c)
	return c
}

func newProvider(repo *calls.MemoryRepo, synth speech.Synthesizer, store speech.AudioStore) *Provider {
	return NewProvider(
		SpeechProducer{Calls: repo},
		AudioProducer{Calls: repo, Synth: synth, Store: store, BaseURL: "https://calls.example.com"},
		errProducer{},
	)
}

func TestRespondSpeechMapsVoiceAndEscapes(t *testing.T) {
	repo := calls.NewMemoryRepo()
	seed(repo, "Fish & chips <today>", "onyx", calls.ProviderOpenAI)
	p := newProvider(repo, &fakeSynth{}, speech.NewMemoryAudioStore())

	out := p.Respond(context.Background(), Request{Variant: VariantSpeech, MessageID: "m1", Voice: "onyx"})
	if !strings.Contains(out, `<Say voice="man">Fish &amp; chips &lt;today&gt;</Say>`) {
		t.Fatalf("unexpected script %s", out)
	}
}

func TestRespondSpeechStaysWellFormedWithControlCharacters(t *testing.T) {
	repo := calls.NewMemoryRepo()
	seed(repo, "Hi\x01there", "alloy", calls.ProviderOpenAI)
	p := newProvider(repo, &fakeSynth{}, speech.NewMemoryAudioStore())

	s := parseScript(t, p.Respond(context.Background(), Request{Variant: VariantSpeech, MessageID: "m1"}))
	if len(s.Says) != 1 || s.Says[0].Text != "Hithere" {
		t.Fatalf("unexpected script %+v", s)
	}
}

func TestRespondAudioStoresAndPlays(t *testing.T) {
	repo := calls.NewMemoryRepo()
	seed(repo, "hello", "Bella", calls.ProviderElevenLabs)
	store := speech.NewMemoryAudioStore()
	p := newProvider(repo, &fakeSynth{audio: []byte("mp3")}, store)

	out := p.Respond(context.Background(), Request{Variant: VariantAudio, MessageID: "m1", Voice: "Bella"})
	s := parseScript(t, out)
	if len(s.Plays) != 1 || s.Plays[0] != "https://calls.example.com/api/audio/message_m1.mp3?voice=Bella" {
		t.Fatalf("unexpected plays %v", s.Plays)
	}
	if b, ok, _ := store.Get(context.Background(), "message_m1.mp3"); !ok || string(b) != "mp3" {
		t.Fatalf("expected stored audio")
	}
}

func TestRespondAudioFallsBackToBuiltinVoice(t *testing.T) {
	repo := calls.NewMemoryRepo()
	seed(repo, "hello", "Bella", calls.ProviderElevenLabs)
	p := newProvider(repo, &fakeSynth{err: errors.New("quota exceeded")}, speech.NewMemoryAudioStore())

	s := parseScript(t, p.Respond(context.Background(), Request{Variant: VariantAudio, MessageID: "m1"}))
	if len(s.Says) != 1 || s.Says[0].Voice != "alice" || s.Says[0].Text != "hello" {
		t.Fatalf("expected built-in voice fallback, got %+v", s)
	}
}

func TestRespondFallbacks(t *testing.T) {
	repo := calls.NewMemoryRepo()
	p := newProvider(repo, &fakeSynth{}, speech.NewMemoryAudioStore())

	assertFallback(t, p.Respond(context.Background(), Request{Variant: VariantSpeech}))
	assertFallback(t, p.Respond(context.Background(), Request{Variant: VariantSpeech, MessageID: "missing"}))
	assertFallback(t, p.Respond(context.Background(), Request{Variant: VariantAgent, MessageID: "m1"}))
	assertFallback(t, p.Respond(context.Background(), Request{Variant: Variant(42)}))

	repo.Fail = errors.New("db down")
	assertFallback(t, p.Respond(context.Background(), Request{Variant: VariantSpeech, MessageID: "m1"}))
}

func TestRespondRecoversPanics(t *testing.T) {
	p := NewProvider(panicProducer{}, panicProducer{}, panicProducer{})
	assertFallback(t, p.Respond(context.Background(), Request{Variant: VariantSpeech, MessageID: "m1"}))
}

func TestAudioRerendersOnMiss(t *testing.T) {
	repo := calls.NewMemoryRepo()
	seed(repo, "hello", "Rachel", calls.ProviderElevenLabs)
	synth := &fakeSynth{audio: []byte("mp3")}
	ap := AudioProducer{Calls: repo, Synth: synth, Store: speech.NewMemoryAudioStore()}

	for i := 0; i < 2; i++ {
		b, err := ap.Audio(context.Background(), "m1", "")
		if err != nil || string(b) != "mp3" {
			t.Fatalf("unexpected audio %q (%v)", b, err)
		}
	}
	if synth.calls != 1 {
		t.Fatalf("expected one render and one cache hit, got %d renders", synth.calls)
	}

	if _, err := ap.Audio(context.Background(), "missing", ""); !errors.Is(err, calls.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParseVariant(t *testing.T) {
	cases := map[string]Variant{
		"elevenlabs": VariantAudio,
		"openai":     VariantSpeech,
		"":           VariantSpeech,
		"agent":      VariantAgent,
		"other":      VariantSpeech,
	}
	for in, want := range cases {
		if got := ParseVariant(in); got != want {
			t.Fatalf("%q: expected %v, got %v", in, want, got)
		}
	}
}
