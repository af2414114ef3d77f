package cmd

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/luma/squeeze/lms"
	"github.com/luma/squeeze/storage"
	"github.com/luma/squeeze/tracker"
)

const jsonContentType = "application/json; charset=utf-8"

type bridge struct {
	tracker *tracker.Tracker
	store   storage.Store
}

type playerView struct {
	Ref      string `json:"ref"`
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
}

type progressView struct {
	Elapsed  float64 `json:"elapsed"`
	Duration float64 `json:"duration"`
	Percent  float64 `json:"percent"`
	Playing  bool    `json:"playing"`
}

func newBridge(track *tracker.Tracker, store storage.Store) *bridge {
	return &bridge{tracker: track, store: store}
}

func (b *bridge) routes(r gin.IRouter) {
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.GET("/state/*path", b.state)
	r.GET("/progress", b.progress)
	r.GET("/players", b.players)
	r.POST("/players/:ref/:action", b.action)
}

// state serves the whole document, or the value at a path given with
// slashes or dots (/state/player/name and /state/player.name are the
// same).
func (b *bridge) state(c *gin.Context) {
	path := strings.Trim(c.Param("path"), "/")
	path = strings.ReplaceAll(path, "/", ".")

	if path == "" {
		doc, err := b.store.Backup()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.Data(http.StatusOK, jsonContentType, doc)
		return
	}

	value, err := b.store.Get(c.Request.Context(), path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if value == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "nothing at " + path})
		return
	}

	c.Data(http.StatusOK, jsonContentType, value)
}

func (b *bridge) progress(c *gin.Context) {
	p := b.tracker.Progress()
	elapsed, duration := p.Snapshot()

	c.JSON(http.StatusOK, progressView{
		Elapsed:  elapsed,
		Duration: duration,
		Percent:  p.Percent(),
		Playing:  b.tracker.Playing(),
	})
}

func (b *bridge) players(c *gin.Context) {
	current := b.tracker.Current()

	players := b.tracker.Players()
	views := make([]playerView, 0, len(players))
	for _, p := range players {
		views = append(views, playerView{
			Ref:      p.Ref(),
			Name:     p.Name(),
			Selected: p.Equal(current),
		})
	}

	c.JSON(http.StatusOK, views)
}

func (b *bridge) action(c *gin.Context) {
	ctx := c.Request.Context()
	ref := c.Param("ref")
	action := c.Param("action")

	player := b.player(ref)
	if player == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such player " + ref})
		return
	}

	var err error
	switch action {
	case "select":
		err = b.tracker.Select(ctx, ref)
	case "volume":
		err = changeVolume(ctx, player, c.PostForm("level"))
	default:
		err = runAction(ctx, player, action)
	}

	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, lms.ErrInvalidVolume), errors.Is(err, ErrUnknownAction):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, tracker.ErrUnknownPlayer):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

func (b *bridge) player(ref string) *lms.Player {
	for _, p := range b.tracker.Players() {
		if p.Ref() == ref {
			return p
		}
	}

	return nil
}
