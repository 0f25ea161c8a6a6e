package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeForbidden              = "forbidden"
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeAuthenticationRequired = "authentication_required"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"

	// Resource errors
	ErrCodeNotFound      = "not_found"
	ErrCodeAlreadyExists = "already_exists"
	ErrCodeConflict      = "conflict"

	// Room errors
	ErrCodeRoomCreationFailed  = "room_creation_failed"
	ErrCodeRoomNotFound        = "room_not_found"
	ErrCodeRoomFull            = "room_full"
	ErrCodeRoomNotInLobby      = "room_not_in_lobby"
	ErrCodeRoomNotInProgress   = "room_not_in_progress"
	ErrCodeNotRoomHost         = "not_room_host"
	ErrCodeInviteRequired      = "invite_required"
	ErrCodePlanRestricted      = "plan_restricted"
	ErrCodeInvalidRoomID       = "invalid_room_id"
	ErrCodeStaleQuestionIndex  = "stale_question_index"
	ErrCodeAdvanceConflict     = "advance_conflict"
	ErrCodeQuestionFetchFailed = "question_fetch_failed"

	// Prize errors
	ErrCodeWinnerNotFound     = "winner_not_found"
	ErrCodeDistributionFailed = "distribution_failed"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"
	ErrCodeConnectionError    = "connection_error"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"

	// Leaderboard errors
	ErrCodeLeaderboardFetchFailed = "leaderboard_fetch_failed"
)
