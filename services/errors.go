package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed        = errors.New("validation failed")
	ErrGroupMembersRequired    = errors.New("at least one member is required")
	ErrGroupNameRequired       = errors.New("group name must not be empty")
	ErrInvalidGroupSize        = errors.New("group size must be a positive integer")
	ErrMemberNotRegistered     = errors.New("user is not a registered participant of this tournament")
	ErrGroupsDifferentEvents   = errors.New("groups belong to different tournaments")
	ErrSameGroup               = errors.New("source and destination group are the same")
	ErrMessageContentRequired  = errors.New("message content must not be empty")
	ErrMessageImageRequired    = errors.New("image messages require image_url")
	ErrMessageTypeInvalid      = errors.New("invalid message type")
	ErrMessageDeleted          = errors.New("message has been deleted")
	ErrTooManyPlayers          = errors.New("a team can list at most 5 players")
	ErrTeamNameRequired        = errors.New("team name is required")
	ErrRegistrationNotOpen     = errors.New("tournament registration is not open")
	ErrTournamentFull          = errors.New("tournament registration is full")
	ErrTournamentNameRequired  = errors.New("tournament name is required")
	ErrTournamentInvalidStatus = errors.New("invalid tournament status transition")
	ErrTournamentInvalidTeams  = errors.New("tournament max teams must be positive")
	ErrTournamentNotPaid       = errors.New("tournament has no entry fee")
	ErrPaymentNotRequired      = errors.New("registration does not await payment")
	ErrPaymentSignatureInvalid = errors.New("payment signature is invalid")
	ErrPaymentsDisabled        = errors.New("payments are not configured")
	ErrInvalidUserReference    = errors.New("user reference is invalid")

	// Ошибки конфликтов
	ErrGroupsAlreadyExist     = errors.New("tournament already has groups; delete them before auto-grouping again")
	ErrMemberAlreadyGrouped   = errors.New("user already belongs to another group of this tournament")
	ErrRegistrationConflict   = errors.New("user is already registered for this tournament")
	ErrTournamentNameConflict = errors.New("tournament name already exists")

	// Ошибки аутентификации и авторизации
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")

	// Ошибки, специфичные для сущностей
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrParticipantNotFound = errors.New("participant registration not found")
	ErrGroupNotFound       = errors.New("group not found")
	ErrRoomNotFound        = errors.New("room not found")
	ErrMessageNotFound     = errors.New("message not found")
	ErrMemberNotInGroup    = errors.New("user is not a member of either group")
	ErrPaymentNotFound     = errors.New("payment not found")
)
