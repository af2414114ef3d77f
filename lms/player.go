package lms

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/luma/squeeze/protocol"
)

const (
	MinVolume = 0
	MaxVolume = 100

	// DefaultVolumeStep is how far VolumeUp and VolumeDown move the volume
	// when called with a step of zero.
	DefaultVolumeStep = 5

	UnnamedPlayer = "unnamed"
)

var ErrInvalidVolume = errors.New("volume must be a whole number")

// Player is a handle on a player known to the server. All of the player's
// state lives on the server and is fetched on every call, only the name is
// cached.
type Player struct {
	ref    string
	server *Server

	mu   sync.RWMutex
	name string

	log *zap.Logger
}

// Ref is the server's identifier for the player, usually its MAC address.
func (p *Player) Ref() string {
	return p.ref
}

// Name returns the cached name, see Refresh.
func (p *Player) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.name
}

// Equal reports whether both handles refer to the same player.
func (p *Player) Equal(other *Player) bool {
	if p == nil || other == nil {
		return p == other
	}

	return p.ref == other.ref
}

func (p *Player) String() string {
	return fmt.Sprintf("player %s (%s)", p.ref, p.Name())
}

// Refresh re-reads the cached name from the server.
func (p *Player) Refresh(ctx context.Context) {
	name := p.GetName(ctx)

	p.mu.Lock()
	p.name = name
	p.mu.Unlock()
}

// Request sends a command targeted at the player.
func (p *Player) Request(ctx context.Context, cmd *protocol.Command) (*protocol.Response, error) {
	return p.server.requester.Request(ctx, cmd.For(p.ref))
}

func (p *Player) send(ctx context.Context, verb string, args ...string) error {
	_, err := p.Request(ctx, protocol.NewCommand(verb, args...))
	if err != nil {
		p.log.Debug("Command failed", zap.String("verb", verb), zap.Error(err))
	}

	return err
}

// query asks the player for a single value.
func (p *Player) query(ctx context.Context, verb string, args ...string) (string, error) {
	resp, err := p.Request(ctx, protocol.NewQuery(verb, args...))
	if err != nil {
		p.log.Debug("Query failed", zap.String("verb", verb), zap.Error(err))
		return "", err
	}

	return resp.Value(), nil
}

// GetName asks the server for the player's name, "unnamed" if that fails.
func (p *Player) GetName(ctx context.Context) string {
	name, err := p.query(ctx, "name")
	if err != nil || name == "" {
		return UnnamedPlayer
	}

	return name
}

func (p *Player) SetName(ctx context.Context, name string) error {
	if err := p.send(ctx, "name", name); err != nil {
		return err
	}

	p.mu.Lock()
	p.name = name
	p.mu.Unlock()

	return nil
}

func (p *Player) Play(ctx context.Context) error {
	return p.send(ctx, "play")
}

func (p *Player) Stop(ctx context.Context) error {
	return p.send(ctx, "stop")
}

func (p *Player) Pause(ctx context.Context) error {
	return p.send(ctx, "pause", "1")
}

func (p *Player) Unpause(ctx context.Context) error {
	return p.send(ctx, "pause", "0")
}

// Toggle switches between playing and paused.
func (p *Player) Toggle(ctx context.Context) error {
	return p.send(ctx, "pause")
}

func (p *Player) Next(ctx context.Context) error {
	return p.send(ctx, "playlist", "jump", "+1")
}

func (p *Player) Prev(ctx context.Context) error {
	return p.send(ctx, "playlist", "jump", "-1")
}

// Mode returns "play", "stop" or "pause", or an empty string if the server
// cannot be asked.
func (p *Player) Mode(ctx context.Context) string {
	mode, err := p.query(ctx, "mode")
	if err != nil {
		return ""
	}

	return mode
}

func (p *Player) IsPlaying(ctx context.Context) bool {
	return p.Mode(ctx) == "play"
}

// Volume returns the player's volume, -1 if the server cannot be asked and
// 0 if it replied with something that is not a number.
func (p *Player) Volume(ctx context.Context) int {
	value, err := p.query(ctx, "mixer", "volume")
	if err != nil {
		return -1
	}

	volume, err := parseNumber(value)
	if err != nil {
		p.log.Debug("Volume is not a number", zap.String("volume", value))
		return 0
	}

	return int(volume)
}

// SetVolume sets the volume, clamped to 0-100.
func (p *Player) SetVolume(ctx context.Context, volume int) error {
	return p.send(ctx, "mixer", "volume", strconv.Itoa(ClampVolume(volume)))
}

// SetVolumeString sets the volume from user input. Input that is not a
// whole number is rejected with ErrInvalidVolume before anything is sent.
func (p *Player) SetVolumeString(ctx context.Context, volume string) error {
	v, err := ParseVolume(volume)
	if err != nil {
		return err
	}

	return p.SetVolume(ctx, v)
}

func (p *Player) VolumeUp(ctx context.Context, step int) error {
	if step <= 0 {
		step = DefaultVolumeStep
	}

	return p.send(ctx, "mixer", "volume", fmt.Sprintf("+%d", step))
}

func (p *Player) VolumeDown(ctx context.Context, step int) error {
	if step <= 0 {
		step = DefaultVolumeStep
	}

	return p.send(ctx, "mixer", "volume", fmt.Sprintf("-%d", step))
}

// SignalStrength returns the wireless signal strength in percent, 0 for
// wired players or if the server cannot be asked.
func (p *Player) SignalStrength(ctx context.Context) int {
	value, err := p.query(ctx, "signalstrength")
	if err != nil {
		return 0
	}

	strength, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}

	return strength
}

// Title, Artist and Album describe the current track, empty if unknown.
func (p *Player) Title(ctx context.Context) string {
	title, _ := p.query(ctx, "title")
	return title
}

func (p *Player) Artist(ctx context.Context) string {
	artist, _ := p.query(ctx, "artist")
	return artist
}

func (p *Player) Album(ctx context.Context) string {
	album, _ := p.query(ctx, "album")
	return album
}

// Duration returns the length of the current track in seconds, 0 if
// unknown.
func (p *Player) Duration(ctx context.Context) float64 {
	return p.seconds(ctx, "duration")
}

// Elapsed returns how far into the current track the player is in seconds,
// 0 if unknown.
func (p *Player) Elapsed(ctx context.Context) float64 {
	return p.seconds(ctx, "time")
}

// ElapsedAndDuration returns both, or zeroes when either is unavailable.
func (p *Player) ElapsedAndDuration(ctx context.Context) (elapsed, duration float64) {
	d, err := p.query(ctx, "duration")
	if err != nil {
		return 0, 0
	}

	e, err := p.query(ctx, "time")
	if err != nil {
		return 0, 0
	}

	if duration, err = parseNumber(d); err != nil {
		return 0, 0
	}

	if elapsed, err = parseNumber(e); err != nil {
		return 0, 0
	}

	return elapsed, duration
}

func (p *Player) seconds(ctx context.Context, verb string) float64 {
	value, err := p.query(ctx, verb)
	if err != nil {
		return 0
	}

	seconds, err := parseNumber(value)
	if err != nil {
		return 0
	}

	return seconds
}

// ClampVolume limits volume to the range the server accepts.
func ClampVolume(volume int) int {
	switch {
	case volume < MinVolume:
		return MinVolume
	case volume > MaxVolume:
		return MaxVolume
	default:
		return volume
	}
}

// ParseVolume parses user input into a volume, without clamping.
func ParseVolume(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: '%s'", ErrInvalidVolume, s)
	}

	return v, nil
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
