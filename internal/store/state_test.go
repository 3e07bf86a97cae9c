package store_test

import (
	"context"

	"github.com/kofuk/premises-launcher/internal/entity/launcher"
	"github.com/kofuk/premises-launcher/internal/host"
	"github.com/kofuk/premises-launcher/internal/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("AppState", func() {
	var (
		ctrl *gomock.Controller
		h    *host.MockHost
		ev   *events
		sut  *store.AppState
	)

	results := map[string]any{
		host.MethodGetGameStatus:        "Idle",
		host.MethodGetLauncherConfig:    launcher.LauncherConfig{MemoryMax: 2048},
		host.MethodGetLauncherLogsCache: []string{"launcher started"},
		host.MethodGetLogs:              []string{},
		host.MethodFetchModpackInfo:     launcher.ModpackInfo{MinecraftVersion: "1.20.1"},
		host.MethodGetSystemMemory:      16 << 30,
	}

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		h = host.NewMockHost(ctrl)
		ev = newEvents()

		h.EXPECT().Listen(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(ev.listen)
		h.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(func(ctx context.Context, method string, params, result any) error {
			return fill(results[method], result)
		})

		sut = store.NewAppState(h)
	})

	It("should load every store once opened", func() {
		sut.Open()
		defer sut.Close()

		Eventually(func() int { return sut.Config.Get().MemoryMax }).Should(Equal(2048))
		Eventually(sut.SystemMemory.Get).Should(Equal(uint64(16 << 30)))
		Eventually(sut.ModpackInfo.Get).Should(HaveField("MinecraftVersion", "1.20.1"))
		Eventually(sut.LauncherLogs.Get).Should(Equal([]string{"launcher started"}))
		Expect(sut.GameStatus.Get()).To(Equal(launcher.GameIdle))
		Expect(sut.Progress.Get()).To(BeNil())

		ev.emit(host.EventUpdateProgress, launcher.Progress{Status: "Downloading assets", Current: 3, Total: 4})
		Expect(sut.Progress.Get()).To(Equal(&launcher.Progress{Status: "Downloading assets", Current: 3, Total: 4}))

		ev.emit(host.EventUpdateProgress, nil)
		Expect(sut.Progress.Get()).To(BeNil())
	})

	It("should release every subscription on close", func() {
		sut.Open()
		sut.Track(sut.GameLogs.Subscribe(func([]string) {}))
		Expect(ev.count()).To(Equal(5))

		sut.Close()
		Expect(ev.count()).To(Equal(0))

		sub := sut.Track(sut.GameStatus.Subscribe(func(launcher.GameStatus) {}))
		Expect(ev.count()).To(Equal(0))
		sub.Close()
	})
})
