package transport

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/luma/squeeze/protocol"
)

const (
	DefaultSimulatorVersion = "8.3.1"

	maskedPassword = "******"
)

// SimTrack is a playlist entry of a simulated player.
type SimTrack struct {
	ID         string
	Title      string
	Artist     string
	Album      string
	Duration   float64
	CoverID    string
	ArtworkURL string
	Remote     bool
}

// SimPlayer is the state of a simulated player.
type SimPlayer struct {
	Ref            string
	Name           string
	Volume         int
	Mode           string
	Elapsed        float64
	SignalStrength int
	Index          int
	Playlist       []SimTrack
}

func (p *SimPlayer) current() (SimTrack, bool) {
	if p.Index < 0 || p.Index >= len(p.Playlist) {
		return SimTrack{}, false
	}

	return p.Playlist[p.Index], true
}

// Hook can intercept a line before the simulator handles it. It returns
// true if it dealt with the line.
type Hook func(session *Session, line string) bool

type SimulatorOptions struct {
	Version string

	// Username and Password, when set, are required before any other
	// command is accepted.
	Username string
	Password string

	Log *zap.Logger
}

// Simulator is a Handler that behaves like a small media server: it keeps
// a set of players in memory, answers the commands a client needs and
// broadcasts notifications when player state changes.
type Simulator struct {
	mu         sync.Mutex
	version    string
	username   string
	password   string
	players    []*SimPlayer
	syncGroups [][]string
	received   []string
	hook       Hook

	server *TCP

	log *zap.Logger
}

func NewSimulator(options SimulatorOptions) *Simulator {
	version := options.Version
	if version == "" {
		version = DefaultSimulatorVersion
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Simulator{
		version:  version,
		username: options.Username,
		password: options.Password,
		log:      log,
	}
}

// NewSimulatorServer starts a server for sim on options.Host and
// options.Port.
func NewSimulatorServer(ctx context.Context, sim *Simulator, options Options) (*TCP, error) {
	options.Handler = sim

	if options.Log == nil {
		options.Log = sim.log
	}

	server := NewTCP(options)
	sim.Attach(server)

	if err := server.Start(ctx); err != nil {
		return nil, err
	}

	return server, nil
}

// Attach sets the server notifications are broadcast on.
func (s *Simulator) Attach(server *TCP) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.server = server
}

func (s *Simulator) SetHook(hook Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hook = hook
}

// AddPlayer adds a player and tells listening clients about it.
func (s *Simulator) AddPlayer(player SimPlayer) {
	if player.Mode == "" {
		player.Mode = "stop"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := player
	s.players = append(s.players, &p)

	s.notifyLocked("client", p.Ref, "client", "new")
}

// RemovePlayer removes the player with ref and tells listening clients.
func (s *Simulator) RemovePlayer(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.players {
		if p.Ref == ref {
			s.players = append(s.players[:i], s.players[i+1:]...)
			s.notifyLocked("client", ref, "client", "forget")
			return
		}
	}
}

// SetSyncGroups replaces the groups of synchronised players.
func (s *Simulator) SetSyncGroups(groups ...[]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.syncGroups = groups
}

// Player returns a copy of the state of the player with ref.
func (s *Simulator) Player(ref string) (SimPlayer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p := s.playerLocked(ref); p != nil {
		cp := *p
		cp.Playlist = append([]SimTrack(nil), p.Playlist...)
		return cp, true
	}

	return SimPlayer{}, false
}

// Received returns every line clients sent, in order.
func (s *Simulator) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.received...)
}

// Notify broadcasts a notification for the player with ref.
func (s *Simulator) Notify(ref string, tokens ...string) {
	if len(tokens) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifyLocked(tokens[0], ref, tokens...)
}

func (s *Simulator) HandleLine(session *Session, line string) {
	s.mu.Lock()
	s.received = append(s.received, line)
	hook := s.hook
	s.mu.Unlock()

	if hook != nil && hook(session, line) {
		return
	}

	raw := protocol.Fields(line)
	tokens := make([]string, 0, len(raw))
	for _, r := range raw {
		t, err := protocol.Unescape(r)
		if err != nil {
			s.log.Warn("Ignoring malformed line", zap.String("line", line), zap.Error(err))
			return
		}

		tokens = append(tokens, t)
	}

	if len(tokens) == 0 {
		return
	}

	ref := ""
	if protocol.LooksLikePlayer(tokens[0]) {
		ref = tokens[0]
		tokens = tokens[1:]

		if len(tokens) == 0 {
			return
		}
	}

	verb, args := tokens[0], tokens[1:]

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.username != "" && !session.Authenticated() && verb != "login" {
		session.Hangup()
		return
	}

	if ref != "" {
		s.playerCommand(session, raw, ref, verb, args)
		return
	}

	s.serverCommand(session, raw, verb, args)
}

func (s *Simulator) serverCommand(session *Session, raw []string, verb string, args []string) {
	switch verb {
	case "login":
		if len(args) < 2 || (s.username != "" && (args[0] != s.username || args[1] != s.password)) {
			s.log.Info("Rejecting login", zap.Int64("session", int64(session.ID())))
			session.Hangup()
			return
		}

		session.SetAuthenticated(true)
		session.Send(strings.Join([]string{raw[0], raw[1], maskedPassword}, " "))

	case "exit":
		session.Hangup()

	case "version":
		session.Send(reply(raw, s.version))

	case "player":
		s.playerQuery(session, raw, args)

	case "syncgroups":
		tagged := make([]string, 0, len(s.syncGroups)*2)
		for _, group := range s.syncGroups {
			names := make([]string, 0, len(group))
			for _, ref := range group {
				if p := s.playerLocked(ref); p != nil {
					names = append(names, p.Name)
				}
			}

			tagged = append(tagged,
				tag("sync_members", strings.Join(group, ",")),
				tag("sync_member_names", strings.Join(names, ",")))
		}

		session.Send(structured(raw, tagged...))

	case "listen":
		if isQuery(raw) {
			session.Send(reply(raw, boolString(session.IsListening())))
			return
		}

		switch first(args) {
		case "0":
			session.Listen(false)
		default:
			session.Listen(true)
		}

		session.Send(strings.Join(raw, " "))

	case "subscribe":
		session.Subscribe(strings.Split(first(args), ","))
		session.Send(strings.Join(raw, " "))

	default:
		session.Send(strings.Join(raw, " "))
	}
}

func (s *Simulator) playerQuery(session *Session, raw []string, args []string) {
	switch first(args) {
	case "count":
		session.Send(reply(raw, strconv.Itoa(len(s.players))))

	case "id", "name":
		if len(args) < 2 {
			session.Send(reply(raw))
			return
		}

		i, err := strconv.Atoi(args[1])
		if err != nil || i < 0 || i >= len(s.players) {
			session.Send(reply(raw))
			return
		}

		if args[0] == "id" {
			session.Send(reply(raw, s.players[i].Ref))
		} else {
			session.Send(reply(raw, s.players[i].Name))
		}

	default:
		session.Send(strings.Join(raw, " "))
	}
}

func (s *Simulator) playerCommand(session *Session, raw []string, ref, verb string, args []string) {
	p := s.playerLocked(ref)
	if p == nil {
		session.Send(reply(raw))
		return
	}

	query := isQuery(raw)
	track, hasTrack := p.current()

	switch verb {
	case "name":
		if query {
			session.Send(reply(raw, p.Name))
			return
		}

		p.Name = first(args)

	case "mixer":
		if first(args) != "volume" {
			break
		}

		if query {
			session.Send(reply(raw, strconv.Itoa(p.Volume)))
			return
		}

		if len(args) > 1 {
			p.Volume = adjust(p.Volume, args[1])
			s.notifyLocked("mixer", ref, "mixer", "volume", args[1])
		}

	case "mode":
		session.Send(reply(raw, p.Mode))
		return

	case "time":
		if query {
			session.Send(reply(raw, formatSeconds(p.Elapsed)))
			return
		}

		if v, err := strconv.ParseFloat(first(args), 64); err == nil {
			p.Elapsed = v
		}

	case "duration":
		session.Send(reply(raw, formatSeconds(track.Duration)))
		return

	case "title", "artist", "album":
		value := ""
		if hasTrack {
			value = map[string]string{"title": track.Title, "artist": track.Artist, "album": track.Album}[verb]
		}

		session.Send(reply(raw, value))
		return

	case "signalstrength":
		session.Send(reply(raw, strconv.Itoa(p.SignalStrength)))
		return

	case "play":
		s.setModeLocked(p, "play")

	case "stop":
		p.Mode = "stop"
		p.Elapsed = 0
		s.notifyLocked("playlist", ref, "playlist", "stop")

	case "pause":
		switch first(args) {
		case "1":
			s.setModeLocked(p, "pause")
		case "0":
			s.setModeLocked(p, "play")
		default:
			if p.Mode == "play" {
				s.setModeLocked(p, "pause")
			} else {
				s.setModeLocked(p, "play")
			}
		}

	case "playlist":
		if s.playlistCommand(session, raw, p, args) {
			return
		}

	case "status":
		session.Send(structured(raw, s.statusLocked(p, args)...))
		return
	}

	session.Send(strings.Join(raw, " "))
}

// playlistCommand handles the playlist verbs, it returns true if it sent
// the reply itself.
func (s *Simulator) playlistCommand(session *Session, raw []string, p *SimPlayer, args []string) bool {
	if len(args) < 2 {
		return false
	}

	switch args[0] {
	case "tracks":
		session.Send(reply(raw, strconv.Itoa(len(p.Playlist))))
		return true

	case "index", "jump":
		if isQuery(raw) {
			session.Send(reply(raw, strconv.Itoa(p.Index)))
			return true
		}

		s.jumpLocked(p, args[1])
	}

	return false
}

func (s *Simulator) statusLocked(p *SimPlayer, args []string) []string {
	start, _ := strconv.Atoi(first(args))
	amount := len(p.Playlist)
	if len(args) > 1 {
		if a, err := strconv.Atoi(args[1]); err == nil {
			amount = a
		}
	}

	tags := ""
	for _, a := range args {
		if strings.HasPrefix(a, "tags:") {
			tags = strings.ReplaceAll(strings.TrimPrefix(a, "tags:"), ",", "")
		}
	}

	tagged := []string{
		tag("player_name", p.Name),
		tag("player_connected", "1"),
		tag("mode", p.Mode),
		tag("time", formatSeconds(p.Elapsed)),
		tag("playlist_cur_index", strconv.Itoa(p.Index)),
		tag("playlist_tracks", strconv.Itoa(len(p.Playlist))),
	}

	for i := start; i >= 0 && i < len(p.Playlist) && i < start+amount; i++ {
		track := p.Playlist[i]

		tagged = append(tagged,
			tag("playlist index", strconv.Itoa(i)),
			tag("id", track.ID),
			tag("title", track.Title))

		for _, t := range tags {
			switch t {
			case 'a':
				tagged = append(tagged, tag("artist", track.Artist))
			case 'c':
				tagged = append(tagged, tag("coverid", track.CoverID))
			case 'd':
				tagged = append(tagged, tag("duration", formatSeconds(track.Duration)))
			case 'j':
				tagged = append(tagged, tag("coverart", boolString(track.CoverID != "")))
			case 'K':
				if track.ArtworkURL != "" {
					tagged = append(tagged, tag("artwork_url", track.ArtworkURL))
				}
			case 'l':
				tagged = append(tagged, tag("album", track.Album))
			case 'x':
				tagged = append(tagged, tag("remote", boolString(track.Remote)))
			}
		}
	}

	return tagged
}

func (s *Simulator) jumpLocked(p *SimPlayer, to string) {
	if len(p.Playlist) == 0 {
		return
	}

	index := p.Index
	switch {
	case strings.HasPrefix(to, "+") || strings.HasPrefix(to, "-"):
		delta, err := strconv.Atoi(to)
		if err != nil {
			return
		}

		index += delta
	default:
		i, err := strconv.Atoi(to)
		if err != nil {
			return
		}

		index = i
	}

	if index < 0 || index >= len(p.Playlist) {
		return
	}

	p.Index = index
	p.Elapsed = 0
	p.Mode = "play"

	s.notifyLocked("playlist", p.Ref, "playlist", "newsong", p.Playlist[index].Title, strconv.Itoa(index))
}

func (s *Simulator) setModeLocked(p *SimPlayer, mode string) {
	p.Mode = mode

	paused := "0"
	if mode == "pause" {
		paused = "1"
	}

	s.notifyLocked("playlist", p.Ref, "playlist", "pause", paused)
}

func (s *Simulator) notifyLocked(category, ref string, tokens ...string) {
	if s.server == nil {
		return
	}

	escaped := make([]string, 0, len(tokens)+1)
	escaped = append(escaped, protocol.Escape(ref))
	for _, t := range tokens {
		escaped = append(escaped, protocol.Escape(t))
	}

	s.server.Broadcast(category, strings.Join(escaped, " "))
}

func (s *Simulator) playerLocked(ref string) *SimPlayer {
	for _, p := range s.players {
		if p.Ref == ref {
			return p
		}
	}

	return nil
}

// reply echoes raw with the trailing `?` replaced by values.
func reply(raw []string, values ...string) string {
	echo := raw
	if len(echo) > 0 && echo[len(echo)-1] == protocol.Query {
		echo = echo[:len(echo)-1]
	}

	out := append([]string(nil), echo...)
	for _, v := range values {
		out = append(out, protocol.Escape(v))
	}

	return strings.Join(out, " ")
}

// isQuery reports whether the line ends in the bare `?` placeholder. An
// escaped `%3F` is a literal value.
func isQuery(raw []string) bool {
	return len(raw) > 0 && raw[len(raw)-1] == protocol.Query
}

// structured echoes raw in full followed by tagged values.
func structured(raw []string, tagged ...string) string {
	return strings.Join(append(append([]string(nil), raw...), tagged...), " ")
}

func tag(key, value string) string {
	return protocol.Escape(key + ":" + value)
}

func adjust(volume int, change string) int {
	v, err := strconv.Atoi(change)
	if err != nil {
		return volume
	}

	if strings.HasPrefix(change, "+") || strings.HasPrefix(change, "-") {
		v += volume
	}

	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func boolString(b bool) string {
	if b {
		return "1"
	}

	return "0"
}

func first(args []string) string {
	if len(args) == 0 {
		return ""
	}

	return args[0]
}
