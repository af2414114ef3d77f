// Package protocol implements the parsing and serialising of lines for the
// Logitech Media Server command line interface (CLI) protocol.
//
// The protocol is line oriented and human readable. A client opens a TCP
// connection (port 9090 by default) and writes one command per line. The
// server replies to every command with a single line that echoes the
// command followed by the result.
//
// - `Command`  - A client instruction to the server.
// - `Response` - The payload of a server reply, after the echo is removed.
// - `Event`    - A notification broadcast by the server to clients that
//                asked to `listen` or `subscribe`.
//
// === General Syntax
//
// - lines are `\n` delimited, an optional trailing `\r` is ignored
// - tokens are space delimited
// - every token is percent-escaped (`%20` for a space, `%3A` for a colon)
// - tagged parameters and results use `key:value`
// - a `?` in the last position asks the server for a value
//
// For example
//   ```
//     > 00%3A04%3A20%3A12%3A34%3A56 mixer volume ?
//     < 00%3A04%3A20%3A12%3A34%3A56 mixer volume 35
//   ```
//
// The server replaces the `?` with the value it was asked for. Commands
// returning many results (see StructuredVerbs) echo the complete command
// and append tagged results instead:
//
//   ```
//     > syncgroups ?
//     < syncgroups ? sync_members%3Aaa,bb sync_member_names%3AKitchen,Lounge
//   ```
//
// === Login
//
//   ```
//     > login user secret
//     < login user ******
//   ```
//
// === Notifications
//
// After `listen` (everything) or `subscribe <category,category>` the server
// pushes notifications on the same connection. They look exactly like
// replies, only nobody asked for them:
//
//   ```
//     < 00%3A04%3A20%3A12%3A34%3A56 playlist newsong Blue%20Train 3
//   ```
//
package protocol
