// Package tracker keeps a now-playing model of one player up to date. It
// reacts to server notifications, polls the progress of the current track
// and writes what a display needs into a storage.Store.
package tracker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/luma/squeeze/lms"
	"github.com/luma/squeeze/notify"
	"github.com/luma/squeeze/storage"
)

const (
	DefaultPollInterval = 250 * time.Millisecond

	// DefaultPollEvery is how many poll intervals pass between asking the
	// server for the real position. In between elapsed time is advanced
	// locally.
	DefaultPollEvery = 20

	// WindowSize is how many tracks RefreshInfo fetches: the current one
	// and the next.
	WindowSize = 2

	handlerTimeout = 5 * time.Second
)

var ErrUnknownPlayer = errors.New("no such player")

type Options struct {
	Server *lms.Server
	Store  storage.Store

	// Progress receives the position of the current track. One is created
	// if nil.
	Progress *storage.Progress

	Artwork ArtworkResolver

	// Cache is optional, without it artwork URLs are used as they are.
	Cache ImageCache

	PollInterval time.Duration
	PollEvery    int

	Log *zap.Logger
}

// Metadata is what is shown for a track.
type Metadata struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	Icon       string `json:"icon"`
	Background string `json:"background"`
}

type Tracker struct {
	server   *lms.Server
	store    storage.Store
	progress *storage.Progress
	artwork  ArtworkResolver
	cache    ImageCache

	pollInterval time.Duration
	pollEvery    int

	mu         sync.RWMutex
	players    []*lms.Player
	current    *lms.Player
	currentRef string
	syncGroups []lms.SyncGroup

	connected atomic.Bool
	playing   atomic.Bool

	log *zap.Logger
}

func New(options Options) *Tracker {
	t := &Tracker{
		server:       options.Server,
		store:        options.Store,
		progress:     options.Progress,
		artwork:      options.Artwork,
		cache:        options.Cache,
		pollInterval: options.PollInterval,
		pollEvery:    options.PollEvery,
		log:          options.Log,
	}

	if t.progress == nil {
		t.progress = &storage.Progress{}
	}

	if t.pollInterval <= 0 {
		t.pollInterval = DefaultPollInterval
	}

	if t.pollEvery <= 0 {
		t.pollEvery = DefaultPollEvery
	}

	if t.log == nil {
		t.log = zap.NewNop()
	}

	return t
}

// Register adds the tracker's handlers to registry. Playlist changes are
// registered first so they are not shadowed by the shorter keys that
// follow.
func (t *Tracker) Register(registry *notify.Registry) {
	registry.AddAll(notify.PlaylistChanged, t.trackChanged)
	registry.Add(notify.PlaylistChangeTrack, t.trackChanged)
	registry.Add(notify.ServerError, t.noServer)
	registry.Add(notify.ServerConnect, t.serverConnect)
	registry.Add(notify.VolumeChange, t.volumeChanged)
	registry.Add(notify.PlayPause, t.playPause)
	registry.Add(notify.ClientAll, t.clientChanged)
}

// Init checks the server and, if it is up, picks a player and loads what
// it is playing.
func (t *Tracker) Init(ctx context.Context) {
	if !t.CheckServer(ctx) {
		t.log.Warn("Server is not reachable, waiting for it to come up")
		return
	}

	if err := t.RefreshPlayers(ctx); err != nil {
		t.log.Warn("Failed to get players", zap.Error(err))
		return
	}

	if player := t.Current(); player != nil {
		t.RefreshInfo(ctx)
		t.setPlaying(ctx, player.IsPlaying(ctx))
	}
}

// CheckServer pings the server and records whether it answered.
func (t *Tracker) CheckServer(ctx context.Context) bool {
	connected := t.server.Ping(ctx)
	t.setConnected(ctx, connected)

	return connected
}

func (t *Tracker) Connected() bool {
	return t.connected.Load()
}

func (t *Tracker) Playing() bool {
	return t.playing.Load()
}

func (t *Tracker) Progress() *storage.Progress {
	return t.progress
}

// Current returns the selected player, nil if there is none.
func (t *Tracker) Current() *lms.Player {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.current
}

func (t *Tracker) Players() []*lms.Player {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return append([]*lms.Player(nil), t.players...)
}

// RefreshPlayers reloads the players and sync groups. The selected player
// is kept if it is still connected, otherwise the first player is
// selected.
func (t *Tracker) RefreshPlayers(ctx context.Context) error {
	if !t.Connected() && !t.CheckServer(ctx) {
		t.clearPlayers(ctx)
		return lms.ErrNoPlayers
	}

	players, err := t.server.Players(ctx)
	if err != nil {
		t.clearPlayers(ctx)
		return err
	}

	if len(players) == 0 {
		t.clearPlayers(ctx)
		return lms.ErrNoPlayers
	}

	groups := t.server.SyncGroups(ctx)

	t.mu.Lock()
	t.players = players
	t.syncGroups = groups
	t.current = players[0]
	for _, p := range players {
		if p.Ref() == t.currentRef {
			t.current = p
			break
		}
	}
	t.currentRef = t.current.Ref()
	current := t.current
	t.mu.Unlock()

	t.log.Info("Players refreshed",
		zap.Int("count", len(players)),
		zap.String("current", current.Ref()))

	t.write(ctx, map[string]interface{}{
		"hasPlayer":     true,
		"player.ref":    current.Ref(),
		"player.name":   current.Name(),
		"player.volume": current.Volume(ctx),
	})

	return nil
}

// Select makes the player with ref the current one and loads what it is
// playing.
func (t *Tracker) Select(ctx context.Context, ref string) error {
	t.mu.Lock()

	var found *lms.Player
	for _, p := range t.players {
		if p.Ref() == ref {
			found = p
			break
		}
	}

	if found == nil {
		t.mu.Unlock()
		return ErrUnknownPlayer
	}

	t.current = found
	t.currentRef = ref
	t.mu.Unlock()

	t.write(ctx, map[string]interface{}{
		"player.ref":    found.Ref(),
		"player.name":   found.Name(),
		"player.volume": found.Volume(ctx),
	})

	t.RefreshInfo(ctx)
	t.setPlaying(ctx, found.IsPlaying(ctx))

	return nil
}

// RefreshInfo loads the current and next track of the selected player and
// the position in the current one.
func (t *Tracker) RefreshInfo(ctx context.Context) {
	player := t.Current()
	if player == nil {
		return
	}

	tracks := player.CurrentDetail(ctx, WindowSize)

	values := map[string]interface{}{
		"hasPlaylist":  len(tracks) > 0,
		"hasNextTrack": len(tracks) == WindowSize,
	}

	if len(tracks) > 0 {
		values["nowPlaying"] = t.Metadata(tracks[0], true)
	}

	if len(tracks) == WindowSize {
		next := t.Metadata(tracks[1], false)
		next.Background = ""
		values["next"] = next
	}

	t.write(ctx, values)

	elapsed, duration := player.ElapsedAndDuration(ctx)
	t.progress.Set(elapsed, duration)
}

// Metadata returns what is shown for track. The artwork URL is used as the
// icon, and as the background unless processImage is set and the cache
// can provide a processed copy.
func (t *Tracker) Metadata(track lms.Track, processImage bool) Metadata {
	md := Metadata{
		Title:  track.Title(),
		Artist: track.Artist(),
		Album:  track.Album(),
	}

	if t.artwork != nil {
		url, err := t.artwork.Resolve(track)
		if err != nil {
			t.log.Debug("No artwork for track", zap.String("title", md.Title), zap.Error(err))
		}

		md.Icon = url
		md.Background = url
	}

	if processImage && t.cache != nil && md.Background != "" {
		path, err := t.cache.CachedPath(md.Background, KindBackground)
		if err != nil {
			t.log.Debug("Failed to get cached background", zap.Error(err))
		} else {
			md.Background = path
		}
	}

	return md
}

// CurOrSync reports whether a notification from ref concerns the current
// player: it is the current player or synced with it.
func (t *Tracker) CurOrSync(ref string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if ref == t.currentRef {
		return true
	}

	for _, g := range t.syncGroups {
		if g.Contains(ref) && g.Contains(t.currentRef) {
			return true
		}
	}

	return false
}

// Run polls the progress of the current track until ctx is done.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	step := t.pollInterval.Seconds()

	for i := 0; ; i = (i + 1) % t.pollEvery {
		if i == 0 {
			t.poll(ctx)
		} else if t.Playing() {
			t.progress.Advance(step)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (t *Tracker) poll(ctx context.Context) {
	player := t.Current()
	if player == nil {
		return
	}

	t.setPlaying(ctx, player.IsPlaying(ctx))

	elapsed, duration := player.ElapsedAndDuration(ctx)
	t.progress.Set(elapsed, duration)
}

// eventPlayer returns the player an event concerns, the current player for
// events without one.
func (t *Tracker) eventPlayer(ev notify.Event) string {
	if ev.Player != "" {
		return ev.Player
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.currentRef
}

func (t *Tracker) trackChanged(ev notify.Event) {
	if !t.CurOrSync(t.eventPlayer(ev)) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	t.RefreshInfo(ctx)
}

func (t *Tracker) noServer(notify.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	t.setConnected(ctx, false)
}

func (t *Tracker) serverConnect(notify.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	t.setConnected(ctx, true)

	if err := t.RefreshPlayers(ctx); err != nil {
		t.log.Warn("Failed to get players", zap.Error(err))
	}
}

func (t *Tracker) volumeChanged(ev notify.Event) {
	if !t.CurOrSync(t.eventPlayer(ev)) {
		return
	}

	player := t.Current()
	if player == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	t.write(ctx, map[string]interface{}{"player.volume": player.Volume(ctx)})
}

// playPause handles `<player> playlist pause <0|1>`.
func (t *Tracker) playPause(ev notify.Event) {
	if !t.CurOrSync(t.eventPlayer(ev)) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	t.setPlaying(ctx, ev.Arg(1) != "1")
}

func (t *Tracker) clientChanged(notify.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := t.RefreshPlayers(ctx); err != nil {
		t.log.Warn("Failed to get players", zap.Error(err))
		return
	}

	t.RefreshInfo(ctx)
}

func (t *Tracker) clearPlayers(ctx context.Context) {
	t.mu.Lock()
	t.players = nil
	t.current = nil
	t.syncGroups = nil
	t.mu.Unlock()

	t.write(ctx, map[string]interface{}{"hasPlayer": false})
}

func (t *Tracker) setConnected(ctx context.Context, connected bool) {
	t.connected.Store(connected)
	t.write(ctx, map[string]interface{}{"connected": connected})
}

func (t *Tracker) setPlaying(ctx context.Context, playing bool) {
	if t.playing.Swap(playing) == playing {
		return
	}

	t.write(ctx, map[string]interface{}{"playing": playing})
}

func (t *Tracker) write(ctx context.Context, values map[string]interface{}) {
	if t.store == nil {
		return
	}

	if err := t.store.SetMany(ctx, values); err != nil {
		t.log.Warn("Failed to update state", zap.Error(err))
	}
}
