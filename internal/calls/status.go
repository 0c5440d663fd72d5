package calls

import (
	"context"
	"strings"

	"voice-relay/pkg/logger"
)

// MapProviderStatus translates a telephony status code into a record status
// and, for failures, the error text stored on the record.
func MapProviderStatus(providerStatus string) (Status, string) {
	switch providerStatus {
	case "completed":
		return StatusCompleted, ""
	case "busy", "failed", "no-answer", "canceled":
		return StatusFailed, "Call " + providerStatus
	case "in-progress", "queued", "ringing":
		return StatusInProgress, ""
	default:
		return StatusUnknown, ""
	}
}

// Reconcile applies an asynchronous status event to the record.
//
// Terminal records (completed, failed) are never changed by later events;
// replaying the same event is a no-op. Non-terminal records take the latest event.
func (s *Service) Reconcile(ctx context.Context, id, providerStatus, callSid string) (Call, error) {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(providerStatus) == "" {
		return Call{}, ErrMissingParameters
	}
	status, errText := MapProviderStatus(providerStatus)
	log := logger.From(ctx).With("message_id", id, "provider_status", providerStatus)

	return s.repo.Transition(ctx, id, func(c Call) (Call, bool) {
		if c.Status.Terminal() {
			if c.Status != status {
				log.Info("ignoring status event for terminal call", "status", c.Status)
			}
			return c, false
		}
		if c.Status == status && c.Error == errText && (callSid == "" || c.SID == callSid) {
			return c, false
		}
		c.Status = status
		c.Error = errText
		if callSid != "" {
			c.SID = callSid
		}
		return c, true
	})
}
