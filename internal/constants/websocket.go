package constants

// Типы входящих сообщений от клиентов.
const (
	WSActionJoinGame  = "join_game"
	WSActionStartGame = "start_game"
	WSActionVote      = "vote"
)

// События, рассылаемые клиентам.
const (
	WSEventPlayerJoined   = "player_joined"
	WSEventGameStarted    = "game_started"
	WSEventPhaseChange    = "phase_change"
	WSEventTimerStarted   = "timer_started"
	WSEventVotingComplete = "voting_complete"
	WSEventLoadingState   = "loading_state"
	WSEventGameEnded      = "game_ended"
	WSEventError          = "error"
)
