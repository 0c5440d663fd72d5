package calls

import "voice-relay/internal/apperr"

var (
	ErrInvalidDestination  = apperr.New(apperr.KindValidation, "Invalid phone number format")
	ErrMessageRequired     = apperr.New(apperr.KindValidation, "Message and phone number are required")
	ErrMessageTooLong      = apperr.New(apperr.KindValidation, "Message must be 300 characters or less")
	ErrMessageInvalid      = apperr.New(apperr.KindValidation, "Message contains unsupported characters")
	ErrMissingAgentID      = apperr.New(apperr.KindConfiguration, "No agent ID provided or configured")
	ErrMissingOriginNumber = apperr.New(apperr.KindConfiguration, "TWILIO_PHONE_NUMBER environment variable is not set")
	ErrNotFound            = apperr.New(apperr.KindNotFound, "Message not found")
	ErrDestinationBusy     = apperr.New(apperr.KindConflict, "A call to this number is already being placed")
	ErrMissingParameters   = apperr.New(apperr.KindValidation, "Missing required parameters")
)
