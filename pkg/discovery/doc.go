// Package discovery finds IRC servers on the local network with mDNS/DNS-SD.
//
// Servers advertise the _irc._tcp service type. The harness browses for it
// when no explicit target is given and picks the first instance found (or the
// named one).
//
// # TXT Records
//
// Advertisements may carry these keys:
//   - network: the IRC network name
//   - tls: "1" when the advertised port expects TLS
//   - version: the server software version
//
// Unknown keys are kept in Service.Text.
package discovery
