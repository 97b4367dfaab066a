package runner

// YAML step actions.
const (
	ActionConnect       = "connect"
	ActionRegister      = "register"
	ActionSend          = "send"
	ActionSendRaw       = "send_raw"
	ActionExpect        = "expect"
	ActionExpectNumeric = "expect_numeric"
	ActionExpectCommand = "expect_command"
	ActionDrain         = "drain"
	ActionSleep         = "sleep"
	ActionClose         = "close"
	ActionAbort         = "abort"
	ActionPause         = "pause"
	ActionResume        = "resume"
	ActionProbe         = "probe"
)

// Step parameter keys.
const (
	ParamLine     = "line"
	ParamLines    = "lines"
	ParamData     = "data"
	ParamChunks   = "chunks"
	ParamDelay    = "delay"
	ParamPattern  = "pattern"
	ParamAbsent   = "absent"
	ParamSave     = "save"
	ParamCode     = "code"
	ParamContains = "contains"
	ParamWording  = "wording"
	ParamCommand  = "command"
	ParamQuiet    = "quiet"
	ParamDuration = "duration"
	ParamNick     = "nick"
	ParamUser     = "user"
	ParamReal     = "real"
	ParamToken    = "token"
	ParamMin      = "min"
)
