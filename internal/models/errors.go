package models

import "errors"

// Ошибки уровня валидации: сообщаются вызывающему как обычный отказ,
// состояние сессии при этом не меняется.
var (
	// ErrNotFound - запись не найдена в хранилище.
	ErrNotFound = errors.New("not found")
	// ErrSessionNotFound - сессия с таким ID не существует.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionFull - в сессии уже максимум активных игроков.
	ErrSessionFull = errors.New("session is full")
	// ErrSessionInactive - сессия завершена, операции недоступны.
	ErrSessionInactive = errors.New("session is not active")
	// ErrPlayerNotFound - игрок не зарегистрирован в сессии.
	ErrPlayerNotFound = errors.New("player not found in session")
	// ErrAlreadyVoted - игрок уже голосовал в текущем раунде.
	ErrAlreadyVoted = errors.New("player has already voted this round")
	// ErrNoScenario - у сессии нет текущего сценария.
	ErrNoScenario = errors.New("session has no current scenario")
	// ErrVotingClosed - окно голосования раунда уже закрыто.
	ErrVotingClosed = errors.New("voting window is closed")
	// ErrVotingInProgress - итог запрошен до закрытия окна голосования.
	ErrVotingInProgress = errors.New("voting is still in progress")
	// ErrNotHost - операция доступна только хосту сессии.
	ErrNotHost = errors.New("only the host can perform this action")
)
