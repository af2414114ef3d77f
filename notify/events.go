package notify

import (
	"github.com/luma/squeeze/protocol"
)

// Keys for the notifications the server broadcasts. Handlers are matched
// against the raw line, so a shorter key covers every longer one that
// starts with it.
const (
	MixerAll     = "mixer"
	VolumeChange = "mixer volume"

	PlaylistAll         = "playlist"
	PlayPause           = "playlist pause"
	Play                = "playlist pause 0"
	Pause               = "playlist pause 1"
	PlaylistOpen        = "playlist open"
	PlaylistChangeTrack = "playlist newsong"
	PlaylistLoadTracks  = "playlist loadtracks"
	PlaylistAddTracks   = "playlist addtracks"
	PlaylistLoaded      = "playlist load_done"
	PlaylistRemove      = "playlist delete"
	PlaylistClear       = "playlist clear"

	ClientAll        = "client"
	ClientNew        = "client new"
	ClientDisconnect = "client disconnect"
	ClientReconnect  = "client reconnect"
	ClientForget     = "client forget"

	Sync = "sync"

	// ServerError and ServerConnect are never sent by the server, the
	// Subscriber raises them itself when it loses or gains its connection.
	ServerError   = "server_error"
	ServerConnect = "server_connect"
)

// PlaylistChanged covers every notification that alters the playlist.
var PlaylistChanged = []string{
	PlaylistLoadTracks,
	PlaylistLoaded,
	PlaylistAddTracks,
	PlaylistRemove,
	PlaylistClear,
}

// IsSynthetic reports whether key names an event raised locally.
func IsSynthetic(key string) bool {
	return key == ServerError || key == ServerConnect
}

// Event is a notification passed to a Handler.
type Event struct {
	// Raw is the line as received, still escaped. For synthetic events it
	// is the event name.
	Raw string

	// Line is the unescaped line.
	Line string

	Category string

	// Player is empty for server wide notifications.
	Player string

	Args []string

	Synthetic bool
}

// Arg returns the i-th token after the category, or an empty string.
func (e Event) Arg(i int) string {
	if i < 0 || i >= len(e.Args) {
		return ""
	}

	return e.Args[i]
}

// ParseEvent decodes a raw notification line.
func ParseEvent(raw string) (Event, error) {
	line, err := protocol.ParseEvent(raw)
	if err != nil {
		return Event{}, err
	}

	return Event{
		Raw:      line.Raw,
		Line:     line.Line,
		Category: line.Category,
		Player:   line.Player,
		Args:     line.Args,
	}, nil
}

// SyntheticEvent builds the event raised for a connection change.
func SyntheticEvent(name string) Event {
	return Event{
		Raw:       name,
		Line:      name,
		Category:  name,
		Synthetic: true,
	}
}
