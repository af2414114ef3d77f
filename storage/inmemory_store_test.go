package storage_test

import (
	"context"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/squeeze/storage"
)

var _ = Describe("storage / InmemoryStore", func() {
	var (
		ctx   context.Context
		store *storage.InmemoryStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = storage.NewInmemoryStore(nil)
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	Describe("Close()", func() {
		It("does not panic when closed twice", func() {
			Expect(func() { store.Close() }).NotTo(Panic())
			Expect(func() { store.Close() }).NotTo(Panic())
		})

		It("closes update channels", func() {
			updates := store.ListenToUpdates()
			Expect(store.Close()).To(Succeed())
			Eventually(updates).Should(BeClosed())
		})

		It("rejects writes once closed", func() {
			Expect(store.Close()).To(Succeed())
			Expect(store.Set(ctx, "foo", "bar")).To(MatchError(storage.ErrClosed))
		})
	})

	It("an empty inmemory store equals {}", func() {
		value, err := store.Backup()
		Expect(err).To(Succeed())
		Expect(string(value)).To(Equal(`{}`))
	})

	Describe("Set() / Get()", func() {
		It("can read a key that is written", func() {
			Expect(store.Set(ctx, "foo", "bar")).To(Succeed())
			Expect(store.Get(ctx, "foo")).To(Equal([]byte(`"bar"`)))

			value, err := store.Backup()
			Expect(err).To(Succeed())
			Expect(string(value)).To(Equal(`{"foo":"bar"}`))
		})

		It("writes nested paths", func() {
			Expect(store.Set(ctx, "nowPlaying.title", "Blue")).To(Succeed())
			Expect(store.Set(ctx, "nowPlaying.artist", "Joni")).To(Succeed())

			Expect(store.Get(ctx, "nowPlaying")).To(Equal([]byte(`{"title":"Blue","artist":"Joni"}`)))
		})

		It("returns nil for paths that were never written", func() {
			Expect(store.Get(ctx, "missing")).To(BeNil())
		})

		It("sends on the update channel when values are set", func() {
			updateChan := store.ListenToUpdates()
			Expect(store.Set(ctx, "foo", "bar")).To(Succeed())

			update, ok := <-updateChan
			Expect(ok).To(BeTrue())
			Expect(update).To(Equal(&storage.Update{
				Path:  "foo",
				Value: []byte(`"bar"`),
			}))
		})
	})

	Describe("SetMany()", func() {
		It("writes every value and sends one update per path in order", func() {
			updateChan := store.ListenToUpdates()

			Expect(store.SetMany(ctx, map[string]interface{}{
				"playing":   true,
				"connected": true,
			})).To(Succeed())

			Expect((<-updateChan).Path).To(Equal("connected"))
			Expect((<-updateChan).Path).To(Equal("playing"))

			Expect(store.Get(ctx, "playing")).To(Equal([]byte(`true`)))
		})
	})

	Describe("Delete()", func() {
		It("removes the path", func() {
			Expect(store.Set(ctx, "next.title", "Song")).To(Succeed())
			Expect(store.Delete(ctx, "next")).To(Succeed())

			Expect(store.Get(ctx, "next")).To(BeNil())
		})
	})

	Describe("Restore()", func() {
		It("replaces the document", func() {
			Expect(store.Restore([]byte(`{"foo":"bar"}`))).To(Succeed())
			Expect(store.Get(ctx, "foo")).To(Equal([]byte(`"bar"`)))
		})

		It("rejects documents that are not JSON", func() {
			Expect(store.Restore([]byte(`{"foo":`))).To(MatchError(storage.ErrInvalidJSON))
		})
	})
})
