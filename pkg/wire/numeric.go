package wire

// Numeric reply codes used by the built-in scenarios and the mock server.
const (
	RplWelcome        = "001"
	RplYourHost       = "002"
	RplCreated        = "003"
	RplMyInfo         = "004"
	RplUModeIs        = "221"
	RplWhoisUser      = "311"
	RplEndOfWho       = "315"
	RplEndOfWhois     = "318"
	RplWhoisChannels  = "319"
	RplList           = "322"
	RplListEnd        = "323"
	RplChannelModeIs  = "324"
	RplNoTopic        = "331"
	RplTopic          = "332"
	RplInviting       = "341"
	RplWhoReply       = "352"
	RplNamReply       = "353"
	RplEndOfNames     = "366"
	ErrNoSuchNick     = "401"
	ErrNoSuchChannel  = "403"
	ErrCannotSendChan = "404"
	ErrNoOrigin       = "409"
	ErrNoRecipient    = "411"
	ErrNoTextToSend   = "412"
	ErrUnknownCommand = "421"
	ErrNoNicknameGive = "431"
	ErrErroneusNick   = "432"
	ErrNicknameInUse  = "433"
	ErrUserNotInChan  = "441"
	ErrNotOnChannel   = "442"
	ErrUserOnChannel  = "443"
	ErrNotRegistered  = "451"
	ErrNeedMoreParams = "461"
	ErrAlreadyRegistr = "462"
	ErrPasswdMismatch = "464"
	ErrChannelIsFull  = "471"
	ErrUnknownMode    = "472"
	ErrInviteOnlyChan = "473"
	ErrBadChannelKey  = "475"
	ErrChanOPrivsNeed = "482"
	ErrUsersDontMatch = "502"
)

var numericNames = map[string]string{
	RplWelcome:        "RPL_WELCOME",
	RplYourHost:       "RPL_YOURHOST",
	RplCreated:        "RPL_CREATED",
	RplMyInfo:         "RPL_MYINFO",
	RplUModeIs:        "RPL_UMODEIS",
	RplWhoisUser:      "RPL_WHOISUSER",
	RplEndOfWho:       "RPL_ENDOFWHO",
	RplEndOfWhois:     "RPL_ENDOFWHOIS",
	RplWhoisChannels:  "RPL_WHOISCHANNELS",
	RplList:           "RPL_LIST",
	RplListEnd:        "RPL_LISTEND",
	RplChannelModeIs:  "RPL_CHANNELMODEIS",
	RplNoTopic:        "RPL_NOTOPIC",
	RplTopic:          "RPL_TOPIC",
	RplInviting:       "RPL_INVITING",
	RplWhoReply:       "RPL_WHOREPLY",
	RplNamReply:       "RPL_NAMREPLY",
	RplEndOfNames:     "RPL_ENDOFNAMES",
	ErrNoSuchNick:     "ERR_NOSUCHNICK",
	ErrNoSuchChannel:  "ERR_NOSUCHCHANNEL",
	ErrCannotSendChan: "ERR_CANNOTSENDTOCHAN",
	ErrNoOrigin:       "ERR_NOORIGIN",
	ErrNoRecipient:    "ERR_NORECIPIENT",
	ErrNoTextToSend:   "ERR_NOTEXTTOSEND",
	ErrUnknownCommand: "ERR_UNKNOWNCOMMAND",
	ErrNoNicknameGive: "ERR_NONICKNAMEGIVEN",
	ErrErroneusNick:   "ERR_ERRONEUSNICKNAME",
	ErrNicknameInUse:  "ERR_NICKNAMEINUSE",
	ErrUserNotInChan:  "ERR_USERNOTINCHANNEL",
	ErrNotOnChannel:   "ERR_NOTONCHANNEL",
	ErrUserOnChannel:  "ERR_USERONCHANNEL",
	ErrNotRegistered:  "ERR_NOTREGISTERED",
	ErrNeedMoreParams: "ERR_NEEDMOREPARAMS",
	ErrAlreadyRegistr: "ERR_ALREADYREGISTRED",
	ErrPasswdMismatch: "ERR_PASSWDMISMATCH",
	ErrChannelIsFull:  "ERR_CHANNELISFULL",
	ErrUnknownMode:    "ERR_UNKNOWNMODE",
	ErrInviteOnlyChan: "ERR_INVITEONLYCHAN",
	ErrBadChannelKey:  "ERR_BADCHANNELKEY",
	ErrChanOPrivsNeed: "ERR_CHANOPRIVSNEEDED",
	ErrUsersDontMatch: "ERR_USERSDONTMATCH",
}

// NumericName returns the symbolic name of a reply code, or the code itself
// when it is not known.
func NumericName(code string) string {
	if n, ok := numericNames[code]; ok {
		return n
	}
	return code
}

// IsNumeric reports whether s is a three-digit reply code.
func IsNumeric(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Numeric returns the reply code of a parsed message, if it is a numeric.
func (m *Message) Numeric() (string, bool) {
	if IsNumeric(m.Command) {
		return m.Command, true
	}
	return "", false
}
