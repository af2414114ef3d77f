package tracker_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/luma/squeeze/client"
	"github.com/luma/squeeze/internal/simtest"
	"github.com/luma/squeeze/lms"
	"github.com/luma/squeeze/notify"
	"github.com/luma/squeeze/storage"
	"github.com/luma/squeeze/tracker"
	"github.com/luma/squeeze/transport"
)

const (
	kitchen = "00:04:20:12:34:56"
	lounge  = "00:04:20:ab:cd:ef"
	garage  = "00:04:20:99:99:99"
)

type fakeCache struct{}

func (fakeCache) CachedPath(url, kind string) (string, error) {
	return "/cache/" + kind + "/cover.jpg", nil
}

var _ = Describe("tracker / Tracker", func() {
	var (
		ctx      context.Context
		cancel   context.CancelFunc
		sim      *simtest.Server
		conn     *client.Conn
		store    *storage.InmemoryStore
		registry *notify.Registry
		track    *tracker.Tracker
	)

	get := func(path string) string {
		value, err := store.Get(context.Background(), path)
		Expect(err).To(Succeed())
		return string(value)
	}

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())

		players := []transport.SimPlayer{
			{
				Ref:    kitchen,
				Name:   "Kitchen",
				Volume: 30,
				Mode:   "play",
				Playlist: []transport.SimTrack{
					{ID: "1", Title: "Blue", Artist: "Joni Mitchell", Album: "Blue", Duration: 200, CoverID: "c1"},
					{ID: "2", Title: "River", Artist: "Joni Mitchell", Album: "Blue", Duration: 240, CoverID: "c2"},
				},
			},
			{Ref: lounge, Name: "Lounge"},
			{Ref: garage, Name: "Garage"},
		}

		var err error
		sim, err = simtest.Start(ctx, transport.SimulatorOptions{}, players...)
		Expect(err).To(Succeed())

		sim.SetSyncGroups([]string{kitchen, lounge})

		conn = client.NewConn(sim.Endpoint, client.Options{Redial: true})
		Expect(conn.Open(ctx)).To(Succeed())

		store = storage.NewInmemoryStore(nil)
		registry = notify.NewRegistry()

		track = tracker.New(tracker.Options{
			Server:       lms.NewServer(conn, zap.NewNop()),
			Store:        store,
			Artwork:      tracker.NewServerArtwork("lms.local", 9000),
			Cache:        fakeCache{},
			PollInterval: 10 * time.Millisecond,
			PollEvery:    1000,
		})
		track.Register(registry)
	})

	AfterEach(func() {
		cancel()
		conn.Close()
		store.Close()
		Expect(sim.Close()).To(Succeed())
	})

	It("registers handlers so playlist changes are not shadowed", func() {
		Expect(registry.Keys()[0]).To(Equal(notify.PlaylistChanged[0]))

		key, _, ok := registry.Match("aa playlist newsong Blue 0")
		Expect(ok).To(BeTrue())
		Expect(key).To(Equal(notify.PlaylistChangeTrack))
	})

	Describe("Init()", func() {
		BeforeEach(func() {
			track.Init(ctx)
		})

		It("selects the first player and loads what it plays", func() {
			Expect(track.Connected()).To(BeTrue())
			Expect(track.Current().Ref()).To(Equal(kitchen))
			Expect(track.Playing()).To(BeTrue())

			Expect(get("connected")).To(Equal("true"))
			Expect(get("hasPlayer")).To(Equal("true"))
			Expect(get("player.name")).To(Equal(`"Kitchen"`))
			Expect(get("player.volume")).To(Equal("30"))
			Expect(get("nowPlaying.title")).To(Equal(`"Blue"`))
			Expect(get("nowPlaying.icon")).To(Equal(`"http://lms.local:9000/music/c1/cover.jpg"`))
			Expect(get("nowPlaying.background")).To(Equal(`"/cache/backgrounds/cover.jpg"`))
			Expect(get("hasNextTrack")).To(Equal("true"))
			Expect(get("next.title")).To(Equal(`"River"`))
			Expect(get("next.background")).To(Equal(`""`))

			_, duration := track.Progress().Snapshot()
			Expect(duration).To(Equal(200.0))
		})

		It("treats synced players as the current one", func() {
			Expect(track.CurOrSync(kitchen)).To(BeTrue())
			Expect(track.CurOrSync(lounge)).To(BeTrue())
			Expect(track.CurOrSync(garage)).To(BeFalse())
		})

		It("keeps the selected player when players are refreshed", func() {
			Expect(track.Select(ctx, garage)).To(Succeed())
			Expect(track.RefreshPlayers(ctx)).To(Succeed())

			Expect(track.Current().Ref()).To(Equal(garage))
			Expect(get("hasPlaylist")).To(Equal("false"))
		})

		It("selects the first player when the selected one goes away", func() {
			Expect(track.Select(ctx, garage)).To(Succeed())
			sim.RemovePlayer(garage)

			Expect(track.RefreshPlayers(ctx)).To(Succeed())
			Expect(track.Current().Ref()).To(Equal(kitchen))
		})

		It("rejects unknown players", func() {
			Expect(track.Select(ctx, "00:00:00:00:00:00")).To(MatchError(tracker.ErrUnknownPlayer))
		})

		It("follows pause notifications of synced players only", func() {
			ev, err := notify.ParseEvent("00%3A04%3A20%3Aab%3Acd%3Aef playlist pause 1")
			Expect(err).To(Succeed())
			Expect(registry.Dispatch(ev)).To(BeTrue())

			Expect(track.Playing()).To(BeFalse())
			Expect(get("playing")).To(Equal("false"))

			ev, err = notify.ParseEvent("00%3A04%3A20%3A99%3A99%3A99 playlist pause 0")
			Expect(err).To(Succeed())
			Expect(registry.Dispatch(ev)).To(BeTrue())

			Expect(track.Playing()).To(BeFalse())
		})

		It("reloads the tracks when the song changes", func() {
			conn2 := client.NewConn(conn.Endpoint(), client.Options{})
			Expect(conn2.Open(ctx)).To(Succeed())
			defer conn2.Close()

			Expect(lms.NewServer(conn2, nil).Player(kitchen).Next(ctx)).To(Succeed())

			ev, err := notify.ParseEvent("00%3A04%3A20%3A12%3A34%3A56 playlist newsong River 1")
			Expect(err).To(Succeed())
			Expect(registry.Dispatch(ev)).To(BeTrue())

			Expect(get("nowPlaying.title")).To(Equal(`"River"`))
			Expect(get("hasNextTrack")).To(Equal("false"))
		})

		It("marks the server as gone and back", func() {
			registry.Dispatch(notify.SyntheticEvent(notify.ServerError))
			Expect(track.Connected()).To(BeFalse())
			Expect(get("connected")).To(Equal("false"))

			registry.Dispatch(notify.SyntheticEvent(notify.ServerConnect))
			Expect(track.Connected()).To(BeTrue())
			Expect(get("connected")).To(Equal("true"))
		})

		It("reloads players when a client comes and goes", func() {
			sim.RemovePlayer(kitchen)

			ev, err := notify.ParseEvent("00%3A04%3A20%3A12%3A34%3A56 client forget")
			Expect(err).To(Succeed())
			Expect(registry.Dispatch(ev)).To(BeTrue())

			Expect(track.Players()).To(HaveLen(2))
			Expect(track.Current().Ref()).To(Equal(lounge))
		})
	})

	Describe("Run()", func() {
		It("advances the position locally while playing", func() {
			track.Init(ctx)

			go track.Run(ctx)

			Eventually(func() float64 {
				elapsed, _ := track.Progress().Snapshot()
				return elapsed
			}).Should(BeNumerically(">", 0.05))
		})
	})

	It("records no players when the server is down", func() {
		Expect(sim.Close()).To(Succeed())
		conn.Close()

		track.Init(ctx)

		Expect(track.Connected()).To(BeFalse())
		Expect(track.Current()).To(BeNil())
		Expect(get("connected")).To(Equal("false"))
	})
})
