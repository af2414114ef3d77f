package lms

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/luma/squeeze/protocol"
)

// DetailedTags are the tags requested for every track in a playlist
// window: artist, coverid, duration, coverart, artwork_url, album and
// remote.
var DetailedTags = []string{"a", "c", "d", "j", "K", "l", "x"}

// PlaylistLoopKey starts every track in the playlist loop of a status
// reply.
const PlaylistLoopKey = "playlist index"

const (
	UnknownTrack  = "Unknown Track"
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// Track holds the tags the server returned for a playlist entry.
type Track map[string]string

func (t Track) get(key, fallback string) string {
	if v, ok := t[key]; ok && v != "" {
		return v
	}

	return fallback
}

func (t Track) Title() string {
	return t.get("title", UnknownTrack)
}

func (t Track) Artist() string {
	return t.get("artist", UnknownArtist)
}

func (t Track) Album() string {
	return t.get("album", UnknownAlbum)
}

func (t Track) ID() string {
	return t["id"]
}

func (t Track) CoverID() string {
	return t["coverid"]
}

func (t Track) ArtworkURL() string {
	return t["artwork_url"]
}

// IsRemote reports whether the track is streamed rather than from the
// local library.
func (t Track) IsRemote() bool {
	return t["remote"] == "1"
}

// Index is the position of the track in the playlist, -1 if unknown.
func (t Track) Index() int {
	i, err := strconv.Atoi(t[PlaylistLoopKey])
	if err != nil {
		return -1
	}

	return i
}

// Duration is the length of the track in seconds, 0 if unknown.
func (t Track) Duration() float64 {
	d, err := parseNumber(t["duration"])
	if err != nil {
		return 0
	}

	return d
}

// PlaylistTrackCount returns the number of tracks in the current playlist,
// 0 if the server cannot be asked.
func (p *Player) PlaylistTrackCount(ctx context.Context) int {
	value, err := p.query(ctx, "playlist", "tracks")
	if err != nil {
		return 0
	}

	count, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}

	return count
}

// PlaylistIndex returns the zero based position of the current track, 0 if
// the server cannot be asked.
func (p *Player) PlaylistIndex(ctx context.Context) int {
	value, err := p.query(ctx, "playlist", "index")
	if err != nil {
		return 0
	}

	index, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}

	return index
}

// PlayIndex starts playing the track at index, zero based.
func (p *Player) PlayIndex(ctx context.Context, index int) error {
	return p.send(ctx, "playlist", "index", strconv.Itoa(index))
}

// PlaylistInfo returns amount tracks of the current playlist from start,
// with the given tags. An amount of zero or less returns every track from
// start. It returns no tracks if the server cannot be asked.
func (p *Player) PlaylistInfo(ctx context.Context, tags []string, start, amount int) []Track {
	if start < 0 {
		start = 0
	}

	if amount <= 0 {
		amount = p.PlaylistTrackCount(ctx)
	}

	cmd := protocol.NewCommand("status", strconv.Itoa(start), strconv.Itoa(amount))
	if len(tags) > 0 {
		cmd.With("tags", strings.Join(tags, ","))
	}

	resp, err := p.Request(ctx, cmd)
	if err != nil {
		p.log.Debug("Failed to get playlist", zap.Error(err))
		return nil
	}

	items := resp.Loop(PlaylistLoopKey)
	tracks := make([]Track, 0, len(items))
	for _, item := range items {
		tracks = append(tracks, Track(item))
	}

	return tracks
}

// PlaylistDetail is PlaylistInfo with DetailedTags.
func (p *Player) PlaylistDetail(ctx context.Context, start, amount int) []Track {
	return p.PlaylistInfo(ctx, DetailedTags, start, amount)
}

// CurrentDetail returns amount tracks starting at the current track, the
// first is the one playing now.
func (p *Player) CurrentDetail(ctx context.Context, amount int) []Track {
	return p.PlaylistDetail(ctx, p.PlaylistIndex(ctx), amount)
}
