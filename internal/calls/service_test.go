package calls

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"voice-relay/internal/apperr"
)

type fakeDialer struct {
	sid   string
	err   error
	dials []Dial
}

func (d *fakeDialer) PlaceCall(ctx context.Context, dial Dial) (string, error) {
	d.dials = append(d.dials, dial)
	if d.err != nil {
		return "", d.err
	}
	return d.sid, nil
}

type busyGuard struct{}

func (busyGuard) Acquire(ctx context.Context, destination string) (func(), error) {
	return nil, ErrDestinationBusy
}

// failingTransitions lets inserts through but fails every status update.
type failingTransitions struct {
	*MemoryRepo
}

func (f failingTransitions) Transition(ctx context.Context, id string, fn func(Call) (Call, bool)) (Call, error) {
	return Call{}, errors.New("connection reset")
}

var testSettings = Settings{
	BaseURL:    "https://calls.example.com/",
	FromNumber: "+15550001111",
}

func TestPlaceCall_Success(t *testing.T) {
	repo := NewMemoryRepo()
	dialer := &fakeDialer{sid: "CA123"}
	svc := NewService(repo, dialer, testSettings)

	c, err := svc.PlaceCall(context.Background(), PlaceCallRequest{
		Message:     "Hello & <welcome>",
		Destination: "(402) 477-4105",
		Voice:       "nova",
		Provider:    ProviderOpenAI,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.To != "+14024774105" {
		t.Fatalf("expected normalized destination, got %q", c.To)
	}
	if c.Status != StatusInProgress || c.SID != "CA123" {
		t.Fatalf("expected in-progress with sid, got %+v", c)
	}

	stored, err := repo.Get(context.Background(), c.ID)
	if err != nil || stored.Status != StatusInProgress {
		t.Fatalf("expected stored in-progress record, got %+v (%v)", stored, err)
	}

	if len(dialer.dials) != 1 {
		t.Fatalf("expected one dial, got %d", len(dialer.dials))
	}
	d := dialer.dials[0]
	if d.From != "+15550001111" || d.To != "+14024774105" {
		t.Fatalf("unexpected dial numbers: %+v", d)
	}
	u, err := url.Parse(d.URL)
	if err != nil {
		t.Fatalf("bad instruction url: %v", err)
	}
	if u.Scheme != "https" || u.Host != "calls.example.com" || u.Path != "/api/twiml" {
		t.Fatalf("unexpected instruction url %q", d.URL)
	}
	q := u.Query()
	if q.Get("messageId") != c.ID || q.Get("voice") != "nova" || q.Get("provider") != "openai" {
		t.Fatalf("unexpected instruction query %v", q)
	}
	if d.StatusCallback != "https://calls.example.com/api/call-status?messageId="+c.ID {
		t.Fatalf("unexpected status callback %q", d.StatusCallback)
	}
}

func TestPlaceCall_RejectsLongMessageWithoutRecord(t *testing.T) {
	repo := NewMemoryRepo()
	dialer := &fakeDialer{sid: "CA1"}
	svc := NewService(repo, dialer, testSettings)

	_, err := svc.PlaceCall(context.Background(), PlaceCallRequest{
		Message:     strings.Repeat("a", 301),
		Destination: "4024774105",
	})
	if !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
	if apperr.HTTPStatus(err) != 400 {
		t.Fatalf("expected validation status, got %d", apperr.HTTPStatus(err))
	}
	all, _ := repo.List(context.Background(), 0)
	if len(all) != 0 || len(dialer.dials) != 0 {
		t.Fatalf("expected no record and no dial, got %d records %d dials", len(all), len(dialer.dials))
	}
}

func TestPlaceCall_ExactlyMaxLengthAllowed(t *testing.T) {
	svc := NewService(NewMemoryRepo(), &fakeDialer{sid: "CA1"}, testSettings)
	// Multi-byte runes count as one character each.
	msg := strings.Repeat("é", MaxBodyLength)
	if _, err := svc.PlaceCall(context.Background(), PlaceCallRequest{Message: msg, Destination: "4024774105"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestPlaceCall_RejectsControlCharactersWithoutRecord(t *testing.T) {
	repo := NewMemoryRepo()
	dialer := &fakeDialer{sid: "CA1"}
	svc := NewService(repo, dialer, testSettings)

	for _, msg := range []string{"Hi\x01there", "bell\a", "bad\xffbyte", "nul\x00"} {
		_, err := svc.PlaceCall(context.Background(), PlaceCallRequest{Message: msg, Destination: "4024774105"})
		if !errors.Is(err, ErrMessageInvalid) || apperr.HTTPStatus(err) != 400 {
			t.Fatalf("%q: expected ErrMessageInvalid, got %v", msg, err)
		}
	}
	all, _ := repo.List(context.Background(), 0)
	if len(all) != 0 || len(dialer.dials) != 0 {
		t.Fatalf("expected no record and no dial, got %d records %d dials", len(all), len(dialer.dials))
	}

	if _, err := svc.PlaceCall(context.Background(), PlaceCallRequest{Message: "Line one\nline two\tend", Destination: "4024774105"}); err != nil {
		t.Fatalf("expected whitespace controls accepted, got %v", err)
	}
}

func TestPlaceCall_ValidationErrors(t *testing.T) {
	svc := NewService(NewMemoryRepo(), &fakeDialer{sid: "CA1"}, testSettings)
	cases := []struct {
		name string
		req  PlaceCallRequest
		want error
	}{
		{"empty message", PlaceCallRequest{Destination: "4024774105"}, ErrMessageRequired},
		{"short number", PlaceCallRequest{Message: "hi", Destination: "477-4105"}, ErrInvalidDestination},
		{"agent without id", PlaceCallRequest{Destination: "4024774105", Provider: ProviderAgent}, ErrMissingAgentID},
	}
	for _, tc := range cases {
		if _, err := svc.PlaceCall(context.Background(), tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestPlaceCall_AgentUsesDefaultAgentAndConversationURL(t *testing.T) {
	repo := NewMemoryRepo()
	dialer := &fakeDialer{sid: "CA9"}
	settings := testSettings
	settings.DefaultAgentID = "agent-default"
	svc := NewService(repo, dialer, settings)

	c, err := svc.PlaceCall(context.Background(), PlaceCallRequest{Destination: "4024774105", Provider: ProviderAgent})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.Body != AgentPlaceholderBody || c.AgentID != "agent-default" {
		t.Fatalf("unexpected agent record %+v", c)
	}
	want := "https://calls.example.com/api/twiml-conversation?agentId=agent-default&messageId=" + c.ID
	if dialer.dials[0].URL != want {
		t.Fatalf("expected %q, got %q", want, dialer.dials[0].URL)
	}
}

func TestPlaceCall_ProviderFailureMarksRecordFailed(t *testing.T) {
	repo := NewMemoryRepo()
	dialer := &fakeDialer{err: errors.New("twilio error 21211: The 'To' number is not a valid phone number.")}
	svc := NewService(repo, dialer, testSettings)

	c, err := svc.PlaceCall(context.Background(), PlaceCallRequest{Message: "hi", Destination: "4024774105"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if apperr.KindOf(err) != apperr.KindProvider {
		t.Fatalf("expected provider error, got %v", apperr.KindOf(err))
	}
	if apperr.Message(err) != dialer.err.Error() {
		t.Fatalf("expected provider message surfaced, got %q", apperr.Message(err))
	}
	stored, _ := repo.Get(context.Background(), c.ID)
	if stored.Status != StatusFailed || stored.Error != dialer.err.Error() {
		t.Fatalf("expected failed record with provider message, got %+v", stored)
	}
}

func TestPlaceCall_MissingOriginNumber(t *testing.T) {
	repo := NewMemoryRepo()
	dialer := &fakeDialer{sid: "CA1"}
	svc := NewService(repo, dialer, Settings{BaseURL: "https://calls.example.com"})

	c, err := svc.PlaceCall(context.Background(), PlaceCallRequest{Message: "hi", Destination: "4024774105"})
	if !errors.Is(err, ErrMissingOriginNumber) {
		t.Fatalf("expected ErrMissingOriginNumber, got %v", err)
	}
	if len(dialer.dials) != 0 {
		t.Fatalf("expected no dial")
	}
	stored, _ := repo.Get(context.Background(), c.ID)
	if stored.Status != StatusFailed {
		t.Fatalf("expected failed record, got %+v", stored)
	}
}

func TestPlaceCall_UpdateErrorDoesNotMaskOutcome(t *testing.T) {
	repo := failingTransitions{NewMemoryRepo()}
	svc := NewService(repo, &fakeDialer{sid: "CA7"}, testSettings)

	c, err := svc.PlaceCall(context.Background(), PlaceCallRequest{Message: "hi", Destination: "4024774105"})
	if err != nil {
		t.Fatalf("expected success despite update error, got %v", err)
	}
	if c.Status != StatusInProgress || c.SID != "CA7" {
		t.Fatalf("unexpected result %+v", c)
	}
}

func TestPlaceCall_GuardRejectsDuplicate(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, &fakeDialer{sid: "CA1"}, testSettings, WithGuard(busyGuard{}))

	_, err := svc.PlaceCall(context.Background(), PlaceCallRequest{Message: "hi", Destination: "4024774105"})
	if !errors.Is(err, ErrDestinationBusy) {
		t.Fatalf("expected ErrDestinationBusy, got %v", err)
	}
	if apperr.HTTPStatus(err) != 409 {
		t.Fatalf("expected 409, got %d", apperr.HTTPStatus(err))
	}
}

func TestQuickCall(t *testing.T) {
	dialer := &fakeDialer{sid: "CA1"}
	svc := NewService(NewMemoryRepo(), dialer, testSettings)

	c, err := svc.QuickCall(context.Background(), "402.477.4105")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.Body != QuickCallBody || c.Voice != DefaultVoice {
		t.Fatalf("unexpected quick call %+v", c)
	}
}

func TestDial_MarksRecordFailedOnProviderError(t *testing.T) {
	repo := NewMemoryRepo()
	rec, _ := repo.Insert(context.Background(), Call{Body: "hi", To: "+14024774105", Status: StatusPending})
	svc := NewService(repo, &fakeDialer{err: errors.New("twilio error 20003: Authenticate")}, testSettings)

	_, err := svc.Dial(context.Background(), DialRequest{To: rec.To, From: "+15550001111", URL: "https://x/api/twiml", MessageID: rec.ID})
	if err == nil {
		t.Fatalf("expected error")
	}
	stored, _ := repo.Get(context.Background(), rec.ID)
	if stored.Status != StatusFailed || stored.Error != "twilio error 20003: Authenticate" {
		t.Fatalf("expected failed record, got %+v", stored)
	}

	if _, err := svc.Dial(context.Background(), DialRequest{To: rec.To}); !errors.Is(err, ErrMissingParameters) {
		t.Fatalf("expected ErrMissingParameters, got %v", err)
	}
}
