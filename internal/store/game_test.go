package store_test

import (
	"context"
	"errors"

	"github.com/kofuk/premises-launcher/internal/entity/launcher"
	"github.com/kofuk/premises-launcher/internal/host"
	"github.com/kofuk/premises-launcher/internal/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("GameStatusStore", func() {
	var (
		ctrl *gomock.Controller
		h    *host.MockHost
		ev   *events
		sut  *store.GameStatusStore
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		h = host.NewMockHost(ctrl)
		ev = newEvents()
		sut = store.NewGameStatusStore(h)
	})

	It("should issue at most one start_game at a time", func() {
		release := make(chan error)
		h.EXPECT().Invoke(gomock.Any(), host.MethodStartGame, nil, nil).DoAndReturn(func(ctx context.Context, method string, params, result any) error {
			return <-release
		})

		first := make(chan error, 1)
		go func() {
			first <- sut.StartGame(context.Background())
		}()
		Eventually(sut.Starting).Should(BeTrue())

		Expect(sut.StartGame(GinkgoT().Context())).To(MatchError(store.ErrStartPending))

		release <- nil
		Eventually(first).Should(Receive(BeNil()))
		Expect(sut.Starting()).To(BeFalse())
	})

	It("should release the guard after a failure", func() {
		gomock.InOrder(
			h.EXPECT().Invoke(gomock.Any(), host.MethodStartGame, nil, nil).Return(&host.RequestError{Method: host.MethodStartGame, Reason: "download failed"}),
			h.EXPECT().Invoke(gomock.Any(), host.MethodStartGame, nil, nil).Return(nil),
		)

		err := sut.StartGame(GinkgoT().Context())
		Expect(host.Reason(err)).To(Equal("download failed"))
		Expect(sut.Starting()).To(BeFalse())

		Expect(sut.StartGame(GinkgoT().Context())).To(Succeed())
	})

	It("should refuse to start a running game", func() {
		h.EXPECT().Listen(host.EventGameStatus, gomock.Any()).DoAndReturn(ev.listen)
		h.EXPECT().Invoke(gomock.Any(), host.MethodGetGameStatus, nil, gomock.Any()).DoAndReturn(respond("Playing"))

		sub := sut.Subscribe(func(launcher.GameStatus) {})
		defer sub.Close()
		Eventually(sut.IsRunning).Should(BeTrue())

		Expect(sut.StartGame(GinkgoT().Context())).To(MatchError(store.ErrGameRunning))

		ev.emit(host.EventGameStatus, "Downloading")
		Expect(sut.IsRunning()).To(BeTrue())
		Expect(sut.StartGame(GinkgoT().Context())).To(MatchError(store.ErrGameRunning))
	})

	It("should follow the status pushed by the host only", func() {
		h.EXPECT().Listen(host.EventGameStatus, gomock.Any()).DoAndReturn(ev.listen)
		h.EXPECT().Invoke(gomock.Any(), host.MethodGetGameStatus, nil, gomock.Any()).AnyTimes().Return(errors.New("not ready"))
		h.EXPECT().Invoke(gomock.Any(), host.MethodStartGame, nil, nil).Return(nil)

		sub := sut.Subscribe(func(launcher.GameStatus) {})
		defer sub.Close()

		Expect(sut.StartGame(GinkgoT().Context())).To(Succeed())
		Expect(sut.Get()).To(Equal(launcher.GameIdle))

		ev.emit(host.EventGameStatus, "Playing")
		Expect(sut.Get()).To(Equal(launcher.GamePlaying))
		ev.emit(host.EventGameStatus, "Idle")
		Expect(sut.IsRunning()).To(BeFalse())
	})
})
