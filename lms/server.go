// Package lms offers player and server operations on top of a CLI
// connection.
//
// Read operations never fail: when the server cannot be reached or replies
// with something unexpected they return a documented default, so that
// callers polling for display purposes degrade gracefully. The operations a
// caller needs to set itself up, enumerating players, return errors.
package lms

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/luma/squeeze/protocol"
)

var ErrNoPlayers = errors.New("no players connected to the server")

// Requester sends a single command and returns the decoded reply.
// *client.Conn is a Requester.
type Requester interface {
	Request(ctx context.Context, cmd *protocol.Command) (*protocol.Response, error)
}

// SyncGroup is a set of players the server keeps in sync.
type SyncGroup struct {
	Members []string
	Names   []string
}

// Contains reports whether the player with ref is in the group.
func (g SyncGroup) Contains(ref string) bool {
	for _, m := range g.Members {
		if m == ref {
			return true
		}
	}

	return false
}

type Server struct {
	requester Requester
	log       *zap.Logger
}

func NewServer(requester Requester, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	return &Server{requester: requester, log: log}
}

// Request sends a raw command to the server, not targeted at a player.
func (s *Server) Request(ctx context.Context, cmd *protocol.Command) (*protocol.Response, error) {
	return s.requester.Request(ctx, cmd)
}

// Ping reports whether the server is reachable.
func (s *Server) Ping(ctx context.Context) bool {
	if _, err := s.requester.Request(ctx, protocol.NewQuery("version")); err != nil {
		s.log.Debug("Server did not answer ping", zap.Error(err))
		return false
	}

	return true
}

// Version returns the server version, or an empty string.
func (s *Server) Version(ctx context.Context) string {
	resp, err := s.requester.Request(ctx, protocol.NewQuery("version"))
	if err != nil {
		s.log.Debug("Failed to get server version", zap.Error(err))
		return ""
	}

	return resp.Value()
}

// PlayerCount returns the number of players connected to the server.
func (s *Server) PlayerCount(ctx context.Context) (int, error) {
	resp, err := s.requester.Request(ctx, protocol.NewQuery("player", "count"))
	if err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}

	count, err := strconv.Atoi(resp.Value())
	if err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}

	return count, nil
}

// PlayerByIndex returns the player at index, zero based.
func (s *Server) PlayerByIndex(ctx context.Context, index int) (*Player, error) {
	resp, err := s.requester.Request(ctx,
		protocol.NewQuery("player", "id", strconv.Itoa(index)))
	if err != nil {
		return nil, fmt.Errorf("failed to get player %d: %w", index, err)
	}

	ref := resp.Value()
	if ref == "" {
		return nil, fmt.Errorf("failed to get player %d: empty reply", index)
	}

	player := s.Player(ref)
	player.Refresh(ctx)

	return player, nil
}

// Players returns every player connected to the server. Unlike the other
// read operations a failure to reach the server is returned, since the
// caller cannot go on without knowing its players.
func (s *Server) Players(ctx context.Context) ([]*Player, error) {
	count, err := s.PlayerCount(ctx)
	if err != nil {
		return nil, err
	}

	players := make([]*Player, 0, count)
	for i := 0; i < count; i++ {
		player, err := s.PlayerByIndex(ctx, i)
		if err != nil {
			return nil, err
		}

		players = append(players, player)
	}

	s.log.Debug("Found players", zap.Int("count", len(players)))

	return players, nil
}

// Player returns a handle for the player with ref. Nothing is sent to the
// server, so the name stays empty until Refresh.
func (s *Server) Player(ref string) *Player {
	return &Player{
		ref:    ref,
		server: s,
		log:    s.log.With(zap.String("player", ref)),
	}
}

// SyncGroups returns the groups of synchronised players, or none if the
// server cannot be asked.
func (s *Server) SyncGroups(ctx context.Context) []SyncGroup {
	resp, err := s.requester.Request(ctx, protocol.NewQuery("syncgroups"))
	if err != nil {
		s.log.Debug("Failed to get sync groups", zap.Error(err))
		return nil
	}

	var groups []SyncGroup
	for _, item := range resp.Loop("sync_members") {
		group := SyncGroup{Members: splitList(item["sync_members"])}
		if names, ok := item["sync_member_names"]; ok {
			group.Names = splitList(names)
		}

		groups = append(groups, group)
	}

	return groups
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}

	return strings.Split(s, ",")
}
