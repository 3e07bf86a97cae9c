package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/kofuk/premises-launcher/internal/entity/launcher"
	"github.com/kofuk/premises-launcher/internal/host"
	"github.com/kofuk/premises-launcher/internal/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Cell", func() {
	var (
		ctrl   *gomock.Controller
		h      *host.MockHost
		ev     *events
		sut    *store.Cell[launcher.GameStatus]
		values chan launcher.GameStatus
		sub    *store.Subscription
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		h = host.NewMockHost(ctrl)
		ev = newEvents()
		values = make(chan launcher.GameStatus, 100)

		sut = store.NewCell(h, store.CellOptions[launcher.GameStatus]{
			Name:        "game_status",
			Default:     launcher.GameIdle,
			FetchMethod: host.MethodGetGameStatus,
			Event:       host.EventGameStatus,
		})
	})

	AfterEach(func() {
		if sub != nil {
			sub.Close()
			sub = nil
		}
	})

	subscribe := func() {
		sub = sut.Subscribe(func(status launcher.GameStatus) {
			values <- status
		})
	}

	It("should hold the default until opened", func() {
		Expect(sut.Get()).To(Equal(launcher.GameIdle))
		Expect(sut.Name()).To(Equal("game_status"))
	})

	It("should take the fetch result when nothing was pushed", func() {
		h.EXPECT().Listen(host.EventGameStatus, gomock.Any()).DoAndReturn(ev.listen)
		h.EXPECT().Invoke(gomock.Any(), host.MethodGetGameStatus, nil, gomock.Any()).DoAndReturn(respond("Playing"))

		subscribe()

		Eventually(values).Should(Receive(Equal(launcher.GamePlaying)))
		Expect(sut.Get()).To(Equal(launcher.GamePlaying))
	})

	It("should deliver pushed values in order", func() {
		pushOnly := store.NewCell(h, store.CellOptions[launcher.GameStatus]{
			Name:    "game_status",
			Default: launcher.GameIdle,
			Event:   host.EventGameStatus,
		})
		h.EXPECT().Listen(host.EventGameStatus, gomock.Any()).DoAndReturn(ev.listen)

		s := pushOnly.Subscribe(func(status launcher.GameStatus) {
			values <- status
		})
		defer s.Close()
		Expect(values).To(Receive(Equal(launcher.GameIdle)))

		ev.emit(host.EventGameStatus, "Downloading")
		ev.emit(host.EventGameStatus, "Playing")
		ev.emit(host.EventGameStatus, "Idle")

		Expect(values).To(Receive(Equal(launcher.GameDownloading)))
		Expect(values).To(Receive(Equal(launcher.GamePlaying)))
		Expect(values).To(Receive(Equal(launcher.GameIdle)))
	})

	It("should discard a fetch result older than a push", func() {
		release := make(chan struct{})
		fetched := make(chan struct{})
		h.EXPECT().Listen(host.EventGameStatus, gomock.Any()).DoAndReturn(ev.listen)
		h.EXPECT().Invoke(gomock.Any(), host.MethodGetGameStatus, nil, gomock.Any()).DoAndReturn(func(ctx context.Context, method string, params, result any) error {
			defer close(fetched)
			<-release
			return fill("Idle", result)
		})

		subscribe()
		ev.emit(host.EventGameStatus, "Downloading")
		Expect(sut.Get()).To(Equal(launcher.GameDownloading))

		close(release)
		Eventually(fetched).Should(BeClosed())
		Consistently(sut.Get, 100*time.Millisecond).Should(Equal(launcher.GameDownloading))
	})

	It("should keep its value when the fetch fails", func() {
		h.EXPECT().Listen(host.EventGameStatus, gomock.Any()).DoAndReturn(ev.listen)
		h.EXPECT().Invoke(gomock.Any(), host.MethodGetGameStatus, nil, gomock.Any()).Return(errors.New("host is gone"))

		subscribe()

		Consistently(sut.Get, 100*time.Millisecond).Should(Equal(launcher.GameIdle))
		ev.emit(host.EventGameStatus, "Playing")
		Expect(sut.Get()).To(Equal(launcher.GamePlaying))
	})

	It("should ignore malformed pushes", func() {
		h.EXPECT().Listen(host.EventGameStatus, gomock.Any()).DoAndReturn(ev.listen)
		h.EXPECT().Invoke(gomock.Any(), host.MethodGetGameStatus, nil, gomock.Any()).DoAndReturn(respond("Playing"))

		subscribe()
		Eventually(sut.Get).Should(Equal(launcher.GamePlaying))

		ev.emit(host.EventGameStatus, "Crashed")
		ev.emit(host.EventGameStatus, 42)
		Expect(sut.Get()).To(Equal(launcher.GamePlaying))
	})

	It("should open once for many subscribers and close after the last one", func() {
		h.EXPECT().Listen(host.EventGameStatus, gomock.Any()).Times(2).DoAndReturn(ev.listen)
		h.EXPECT().Invoke(gomock.Any(), host.MethodGetGameStatus, nil, gomock.Any()).AnyTimes().DoAndReturn(respond("Idle"))

		first := sut.Subscribe(func(launcher.GameStatus) {})
		second := sut.Subscribe(func(launcher.GameStatus) {})
		Expect(ev.count()).To(Equal(1))

		first.Close()
		first.Close()
		Expect(ev.count()).To(Equal(1))

		second.Close()
		Expect(ev.count()).To(Equal(0))

		subscribe()
		Expect(ev.count()).To(Equal(1))
		Eventually(values).Should(Receive())
	})

	It("should cancel an outstanding fetch on close", func() {
		canceled := make(chan struct{})
		h.EXPECT().Listen(host.EventGameStatus, gomock.Any()).DoAndReturn(ev.listen)
		h.EXPECT().Invoke(gomock.Any(), host.MethodGetGameStatus, nil, gomock.Any()).DoAndReturn(func(ctx context.Context, method string, params, result any) error {
			<-ctx.Done()
			close(canceled)
			return ctx.Err()
		})

		s := sut.Subscribe(func(launcher.GameStatus) {})
		s.Close()

		Eventually(canceled).Should(BeClosed())
		Expect(sut.Get()).To(Equal(launcher.GameIdle))
	})

	It("should queue publishes made from a callback", func() {
		logs := store.NewCell(h, store.CellOptions[[]string]{
			Name:  "logs",
			Event: host.EventLog,
			DecodeEvent: func(current []string, payload json.RawMessage) ([]string, error) {
				var line string
				if err := json.Unmarshal(payload, &line); err != nil {
					return nil, err
				}
				return append(append([]string(nil), current...), line), nil
			},
		})
		h.EXPECT().Listen(host.EventLog, gomock.Any()).DoAndReturn(ev.listen)

		var lengths []int
		echo := logs.Subscribe(func(lines []string) {
			if len(lines) == 1 {
				ev.emit(host.EventLog, "echo")
			}
		})
		defer echo.Close()
		observer := logs.Subscribe(func(lines []string) {
			lengths = append(lengths, len(lines))
		})
		defer observer.Close()

		ev.emit(host.EventLog, "first")

		Expect(logs.Get()).To(Equal([]string{"first", "echo"}))
		Expect(lengths).To(Equal([]int{0, 2}))
	})

	It("should load the fetched value", func() {
		h.EXPECT().Listen(host.EventGameStatus, gomock.Any()).DoAndReturn(ev.listen)
		h.EXPECT().Invoke(gomock.Any(), host.MethodGetGameStatus, nil, gomock.Any()).DoAndReturn(respond("Downloading"))

		status, s, err := sut.Load(GinkgoT().Context())
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		Expect(status).To(Equal(launcher.GameDownloading))
		Expect(ev.count()).To(Equal(1))
	})

	It("should settle a load when the fetch fails", func() {
		h.EXPECT().Listen(host.EventGameStatus, gomock.Any()).DoAndReturn(ev.listen)
		h.EXPECT().Invoke(gomock.Any(), host.MethodGetGameStatus, nil, gomock.Any()).Return(errors.New("host is gone"))

		status, s, err := sut.Load(GinkgoT().Context())
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		Expect(status).To(Equal(launcher.GameIdle))
	})

	It("should give up loading when the context is done", func() {
		h.EXPECT().Listen(host.EventGameStatus, gomock.Any()).DoAndReturn(ev.listen)
		h.EXPECT().Invoke(gomock.Any(), host.MethodGetGameStatus, nil, gomock.Any()).DoAndReturn(func(ctx context.Context, method string, params, result any) error {
			<-ctx.Done()
			return ctx.Err()
		})

		ctx, cancel := context.WithTimeout(GinkgoT().Context(), 50*time.Millisecond)
		defer cancel()

		_, s, err := sut.Load(ctx)
		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(s).To(BeNil())
		Expect(ev.count()).To(Equal(0))
	})
})
