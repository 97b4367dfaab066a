// Package wire implements the line framing of the text protocol exercised by
// the conformance harness.
//
// Every message is one line of text terminated by CR LF. Received bytes are
// accumulated in a LineBuffer which surfaces only fully terminated lines;
// a trailing partial line is retained until its terminator arrives, no
// matter how many reads it takes.
//
// # Terminators
//
// Outgoing lines always use CR LF. Incoming lines are split on LF and a
// single preceding CR is removed, so servers that emit bare LF are accepted
// too.
//
// # Messages
//
// Parse splits a line into prefix, command and parameters. The harness does
// not depend on it for matching (expectations are regular expressions over
// the raw line), but scenarios use it to pull values out of replies.
//
//	:server 001 alice :Welcome to the network
//	\____/ \_/ \___/ \______________________/
//	prefix cmd  param       trailing
package wire
