package client_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/luma/squeeze/client"
	"github.com/luma/squeeze/internal/simtest"
	"github.com/luma/squeeze/protocol"
	"github.com/luma/squeeze/transport"
)

const kitchen = "00:04:20:12:34:56"

var _ = Describe("client / Conn", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		sim    *simtest.Server
		conn   *client.Conn
	)

	start := func(options transport.SimulatorOptions) {
		var err error
		sim, err = simtest.Start(ctx, options, transport.SimPlayer{Ref: kitchen, Name: "My Player", Volume: 45})
		Expect(err).To(Succeed())
	}

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
	})

	AfterEach(func() {
		if conn != nil {
			conn.Close()
		}

		Expect(sim.Close()).To(Succeed())
		cancel()
	})

	Context("without credentials", func() {
		BeforeEach(func() {
			start(transport.SimulatorOptions{})

			conn = client.NewConn(sim.Endpoint, client.Options{
				ReadTimeout: 200 * time.Millisecond,
				Log:         zap.NewNop(),
			})
			Expect(conn.Open(ctx)).To(Succeed())
		})

		It("is ready once connected", func() {
			Expect(conn.IsConnected()).To(BeTrue())
			Expect(conn.State()).To(Equal(client.Ready))
		})

		It("returns the unescaped answer to a query", func() {
			resp, err := conn.Request(ctx, protocol.NewQuery("name").For(kitchen))
			Expect(err).To(Succeed())
			Expect(resp.Value()).To(Equal("My Player"))
		})

		It("returns the raw payload", func() {
			Expect(conn.RequestRaw(ctx, protocol.NewQuery("name").For(kitchen))).
				To(Equal("My%20Player"))
		})

		It("answers pings", func() {
			Expect(conn.Ping(ctx)).To(BeTrue())
		})

		It("refuses to connect twice", func() {
			Expect(conn.Connect(ctx)).To(MatchError(client.ErrAlreadyConnected))
		})

		It("refuses to change the endpoint while connected", func() {
			Expect(conn.SetEndpoint(client.Endpoint{Host: "elsewhere"})).To(MatchError(client.ErrAlreadyConnected))

			Expect(conn.Close()).To(Succeed())
			Expect(conn.SetEndpoint(client.Endpoint{Host: "elsewhere"})).To(Succeed())
			Expect(conn.Endpoint().Host).To(Equal("elsewhere"))
		})

		It("times out and closes the connection when the server does not reply", func() {
			sim.SetHook(func(s *transport.Session, line string) bool {
				return strings.Contains(line, " mode ")
			})

			_, err := conn.Request(ctx, protocol.NewQuery("mode").For(kitchen))

			var timeoutErr *client.RequestTimeoutError
			Expect(errors.As(err, &timeoutErr)).To(BeTrue())
			Expect(timeoutErr.Timeout()).To(BeTrue())
			Expect(timeoutErr.After).To(BeNumerically(">", 0))
			Expect(timeoutErr.After).To(BeNumerically("<=", 200*time.Millisecond))
			Expect(conn.IsConnected()).To(BeFalse())
		})

		It("closes the connection when the reply does not echo the request", func() {
			sim.SetHook(func(s *transport.Session, line string) bool {
				s.Send("something else")
				return true
			})

			_, err := conn.Request(ctx, protocol.NewQuery("version"))

			var protocolErr *client.ProtocolError
			Expect(errors.As(err, &protocolErr)).To(BeTrue())
			Expect(protocolErr.Received).To(Equal("something else"))
			Expect(conn.IsConnected()).To(BeFalse())
		})

		It("fails requests once closed", func() {
			Expect(conn.Close()).To(Succeed())
			Expect(conn.Close()).To(Succeed())

			_, err := conn.Request(ctx, protocol.NewQuery("version"))
			Expect(errors.Is(err, client.ErrNotConnected)).To(BeTrue())
			Expect(conn.Ping(ctx)).To(BeFalse())
		})

		It("honours a cancelled context", func() {
			cancelled, cancelNow := context.WithCancel(ctx)
			cancelNow()

			_, err := conn.Request(cancelled, protocol.NewQuery("version"))
			Expect(err).To(MatchError(context.Canceled))
		})

		It("returns an empty line when nothing is pushed in time", func() {
			Expect(conn.ReadLine(50 * time.Millisecond)).To(BeEmpty())
			Expect(conn.IsConnected()).To(BeTrue())
		})

		It("reads pushed notifications", func() {
			_, err := conn.Request(ctx, protocol.NewCommand("listen", "1"))
			Expect(err).To(Succeed())

			sim.Notify(kitchen, "mixer", "volume", "50")

			Expect(conn.ReadLine(time.Second)).To(Equal("00%3A04%3A20%3A12%3A34%3A56 mixer volume 50"))
		})
	})

	Context("with redial", func() {
		BeforeEach(func() {
			start(transport.SimulatorOptions{})

			conn = client.NewConn(sim.Endpoint, client.Options{Redial: true})
			Expect(conn.Open(ctx)).To(Succeed())
		})

		It("reconnects after the server dropped the connection", func() {
			Expect(sim.TCP.Disconnect()).To(Succeed())

			Eventually(func() error {
				_, err := conn.Request(ctx, protocol.NewQuery("version"))
				return err
			}).Should(Succeed())

			Expect(sim.TCP.Accepted()).To(BeEquivalentTo(2))
		})
	})

	Context("with credentials", func() {
		BeforeEach(func() {
			start(transport.SimulatorOptions{Username: "admin", Password: "secret"})
		})

		It("logs in when opening", func() {
			conn = client.NewConn(sim.Endpoint, client.Options{})
			Expect(conn.Open(ctx)).To(Succeed())

			Expect(conn.Ping(ctx)).To(BeTrue())
		})

		It("authenticates before it is ready", func() {
			core, logs := observer.New(zapcore.DebugLevel)

			conn = client.NewConn(sim.Endpoint, client.Options{Log: zap.New(core)})
			Expect(conn.Open(ctx)).To(Succeed())

			var states []string
			for _, entry := range logs.FilterMessage("State changed").All() {
				states = append(states, entry.ContextMap()["to"].(string))
			}

			Expect(states).To(Equal([]string{"connecting", "authenticating", "ready"}))
			Expect(conn.State()).To(Equal(client.Ready))
		})

		It("reports rejected credentials", func() {
			endpoint := sim.Endpoint
			endpoint.Credentials = &client.Credentials{Username: "admin", Password: "wrong"}

			conn = client.NewConn(endpoint, client.Options{Redial: true})
			err := conn.Open(ctx)

			var authErr *client.AuthenticationError
			Expect(errors.As(err, &authErr)).To(BeTrue())
			Expect(authErr.Username).To(Equal("admin"))
			Expect(client.IsFatal(err)).To(BeTrue())
			Expect(conn.IsConnected()).To(BeFalse())

			_, err = conn.Request(ctx, protocol.NewQuery("version"))
			Expect(errors.As(err, &authErr)).To(BeTrue())
			Expect(sim.TCP.Accepted()).To(BeEquivalentTo(1))
		})
	})

	Context("without a server", func() {
		It("fails to dial", func() {
			start(transport.SimulatorOptions{})
			endpoint := sim.Endpoint
			Expect(sim.Close()).To(Succeed())

			conn = client.NewConn(endpoint, client.Options{DialTimeout: 200 * time.Millisecond})
			err := conn.Open(ctx)

			var connErr *client.ConnectionError
			Expect(errors.As(err, &connErr)).To(BeTrue())
			Expect(connErr.Op).To(Equal("dial"))
			Expect(client.IsFatal(err)).To(BeFalse())
		})

		It("needs a host", func() {
			start(transport.SimulatorOptions{})

			conn = client.NewConn(client.Endpoint{}, client.Options{})
			Expect(conn.Open(ctx)).To(MatchError(client.ErrNoHost))
		})
	})
})

var _ = Describe("client / Endpoint", func() {
	It("defaults to the CLI port", func() {
		Expect(client.Endpoint{Host: "lms.local"}.Addr()).To(Equal("lms.local:9090"))
		Expect(client.Endpoint{Host: "::1", Port: 9091}.Addr()).To(Equal("[::1]:9091"))
	})
})
