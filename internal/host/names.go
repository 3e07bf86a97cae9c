package host

// Requests served by the host.
const (
	MethodLoginOffline         = "login_offline"
	MethodLoginMsa             = "login_msa"
	MethodGetGameStatus        = "get_game_status"
	MethodStartGame            = "start_game"
	MethodGetLauncherConfig    = "get_launcher_config"
	MethodSetLauncherConfig    = "set_launcher_config"
	MethodGetLauncherLogsCache = "get_launcher_logs_cache"
	MethodGetLogs              = "get_logs"
	MethodFetchModpackInfo     = "fetch_modpack_info"
	MethodGetSystemMemory      = "get_system_memory"
)

// Events pushed by the host.
const (
	EventGameStatus           = "game_status"
	EventLauncherConfigUpdate = "launcher_config_update"
	EventLog                  = "log"
	EventLauncherLog          = "launcher_log"
	EventUpdateProgress       = "update_progress"
)

// Log buffers kept by the host, addressed by get_logs.
const (
	LogGame     = "game_logs"
	LogLauncher = "launcher_logs"
)

// NotifyEventEmit is the notification carrying every pushed event.
const NotifyEventEmit = "event/emit"

type LoginOfflineInput struct {
	Username string `json:"username"`
}

type SetLauncherConfigInput struct {
	Config any `json:"config"`
}

type GetLogsInput struct {
	ID string `json:"id"`
}

type EventEmitInput struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}
