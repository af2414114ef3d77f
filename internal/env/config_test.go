package env_test

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zapcore"

	"github.com/luma/squeeze/client"
	"github.com/luma/squeeze/internal/env"
)

var _ = Describe("env / LoadConfig", func() {
	vars := []string{
		"SQUEEZE_HOST",
		"SQUEEZE_PORT",
		"SQUEEZE_WEB_PORT",
		"SQUEEZE_USERNAME",
		"SQUEEZE_PASSWORD",
		"SQUEEZE_LOG_LEVEL",
		"SQUEEZE_DEBUG_HTTP",
		"SQUEEZE_RETRY_DELAY",
	}

	BeforeEach(func() {
		for _, v := range vars {
			Expect(os.Unsetenv(v)).To(Succeed())
		}
	})

	AfterEach(func() {
		for _, v := range vars {
			Expect(os.Unsetenv(v)).To(Succeed())
		}
	})

	It("falls back to the defaults", func() {
		conf, err := env.LoadConfig(context.Background())
		Expect(err).To(Succeed())

		Expect(conf.Host).To(Equal("localhost"))
		Expect(conf.Port).To(Equal(9090))
		Expect(conf.WebPort).To(Equal(9000))
		Expect(conf.LogLevel).To(Equal("info"))
		Expect(conf.DebugHTTP).To(BeFalse())
		Expect(conf.RetryDelay).To(Equal(5 * time.Second))
		Expect(conf.Endpoint()).To(Equal(client.Endpoint{Host: "localhost", Port: 9090}))
	})

	It("reads the environment", func() {
		os.Setenv("SQUEEZE_HOST", "music.local")
		os.Setenv("SQUEEZE_PORT", "9190")
		os.Setenv("SQUEEZE_USERNAME", "admin")
		os.Setenv("SQUEEZE_PASSWORD", "secret")
		os.Setenv("SQUEEZE_DEBUG_HTTP", "true")
		os.Setenv("SQUEEZE_RETRY_DELAY", "250ms")

		conf, err := env.LoadConfig(context.Background())
		Expect(err).To(Succeed())

		Expect(conf.DebugHTTP).To(BeTrue())
		Expect(conf.RetryDelay).To(Equal(250 * time.Millisecond))
		Expect(conf.Endpoint()).To(Equal(client.Endpoint{
			Host:        "music.local",
			Port:        9190,
			Credentials: &client.Credentials{Username: "admin", Password: "secret"},
		}))
	})

	It("rejects values of the wrong type", func() {
		os.Setenv("SQUEEZE_PORT", "ninety")

		_, err := env.LoadConfig(context.Background())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("env / MakeLogger", func() {
	It("logs at the requested level", func() {
		log, err := env.MakeLogger("warn")
		Expect(err).To(Succeed())

		Expect(log.Core().Enabled(zapcore.WarnLevel)).To(BeTrue())
		Expect(log.Core().Enabled(zapcore.InfoLevel)).To(BeFalse())
	})

	It("defaults to info", func() {
		log, err := env.MakeLogger("")
		Expect(err).To(Succeed())

		Expect(log.Core().Enabled(zapcore.InfoLevel)).To(BeTrue())
		Expect(log.Core().Enabled(zapcore.DebugLevel)).To(BeFalse())
	})

	It("rejects unknown levels", func() {
		_, err := env.MakeLogger("chatty")
		Expect(err).To(MatchError(ContainSubstring("invalid log level 'chatty'")))
	})
})
