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

var _ = Describe("ConfigStore", func() {
	var (
		ctrl    *gomock.Controller
		h       *host.MockHost
		ev      *events
		modpack *store.Cell[*launcher.ModpackInfo]
		memory  *store.Cell[uint64]
		sut     *store.ConfigStore
		subs    []*store.Subscription
	)

	loggedIn := launcher.LauncherConfig{
		Authentication:  launcher.NewOfflineAuthentication("player", "00000000-0000-3000-8000-000000000000"),
		MemoryMax:       2048,
		SelectedOptions: []string{"shaders"},
	}

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		h = host.NewMockHost(ctrl)
		ev = newEvents()
		modpack = store.NewCell(h, store.CellOptions[*launcher.ModpackInfo]{
			Name:        "modpack_info",
			FetchMethod: host.MethodFetchModpackInfo,
		})
		memory = store.NewCell(h, store.CellOptions[uint64]{
			Name:        "system_memory",
			FetchMethod: host.MethodGetSystemMemory,
		})
		sut = store.NewConfigStore(h, modpack, memory)
		subs = nil
	})

	AfterEach(func() {
		for _, sub := range subs {
			sub.Close()
		}
	})

	openConfig := func(cfg launcher.LauncherConfig) {
		h.EXPECT().Listen(host.EventLauncherConfigUpdate, gomock.Any()).DoAndReturn(ev.listen)
		h.EXPECT().Invoke(gomock.Any(), host.MethodGetLauncherConfig, nil, gomock.Any()).DoAndReturn(respond(cfg))

		subs = append(subs, sut.Subscribe(func(launcher.LauncherConfig) {}))
		Eventually(func() int { return sut.Get().MemoryMax }).Should(Equal(cfg.MemoryMax))
	}

	It("should default to 1024 MiB", func() {
		Expect(sut.Get().MemoryMax).To(Equal(launcher.ClientDefaultMemoryMax))
		Expect(sut.Get().IsLoggedIn()).To(BeFalse())
	})

	It("should keep everything but the authentication on logout", func() {
		openConfig(loggedIn)
		Expect(sut.Get().IsLoggedIn()).To(BeTrue())

		expected := loggedIn.WithoutAuthentication()
		h.EXPECT().Invoke(gomock.Any(), host.MethodSetLauncherConfig, host.SetLauncherConfigInput{Config: expected}, nil).Return(nil)

		Expect(sut.Logout(GinkgoT().Context())).To(Succeed())
		Expect(sut.Get()).To(Equal(expected))
		Expect(sut.Get().Authentication).To(BeNil())
	})

	It("should let a push win over a slow fetch", func() {
		release := make(chan struct{})
		fetched := make(chan struct{})
		h.EXPECT().Listen(host.EventLauncherConfigUpdate, gomock.Any()).DoAndReturn(ev.listen)
		h.EXPECT().Invoke(gomock.Any(), host.MethodGetLauncherConfig, nil, gomock.Any()).DoAndReturn(func(ctx context.Context, method string, params, result any) error {
			defer close(fetched)
			<-release
			return fill(launcher.LauncherConfig{MemoryMax: 2048}, result)
		})

		subs = append(subs, sut.Subscribe(func(launcher.LauncherConfig) {}))
		ev.emit(host.EventLauncherConfigUpdate, launcher.LauncherConfig{MemoryMax: 4096})
		close(release)

		Eventually(fetched).Should(BeClosed())
		Consistently(func() int { return sut.Get().MemoryMax }).Should(Equal(4096))
	})

	It("should keep an optimistic write when the host rejects it", func() {
		openConfig(loggedIn)

		h.EXPECT().Invoke(gomock.Any(), host.MethodSetLauncherConfig, gomock.Any(), nil).Return(errors.New("disk full"))

		err := sut.SetMemoryMax(GinkgoT().Context(), 3072)
		Expect(err).To(MatchError("disk full"))
		Expect(sut.Get().MemoryMax).To(Equal(3072))

		ev.emit(host.EventLauncherConfigUpdate, loggedIn)
		Expect(sut.Get().MemoryMax).To(Equal(2048))
	})

	It("should validate the memory size", func() {
		h.EXPECT().Invoke(gomock.Any(), host.MethodGetSystemMemory, nil, gomock.Any()).DoAndReturn(respond(4 << 30))
		subs = append(subs, memory.Subscribe(func(uint64) {}))
		Eventually(memory.Get).Should(Equal(uint64(4 << 30)))

		Expect(sut.SetMemoryMax(GinkgoT().Context(), 0)).To(MatchError(store.ErrInvalidMemory))
		Expect(sut.SetMemoryMax(GinkgoT().Context(), 8192)).To(MatchError(store.ErrInvalidMemory))
		Expect(sut.Get().MemoryMax).To(Equal(launcher.ClientDefaultMemoryMax))
	})

	It("should drop incompatible optionals when selecting one", func() {
		info := &launcher.ModpackInfo{
			Optionals: []launcher.Optional{
				{ID: "shaders", IncompatibleWith: []string{"performance"}},
				{ID: "performance"},
				{ID: "minimap"},
			},
		}
		h.EXPECT().Invoke(gomock.Any(), host.MethodFetchModpackInfo, nil, gomock.Any()).DoAndReturn(respond(info))
		subs = append(subs, modpack.Subscribe(func(*launcher.ModpackInfo) {}))
		Eventually(modpack.Get).ShouldNot(BeNil())

		openConfig(loggedIn)
		h.EXPECT().Invoke(gomock.Any(), host.MethodSetLauncherConfig, gomock.Any(), nil).Times(3).Return(nil)

		Expect(sut.ToggleOption(GinkgoT().Context(), "minimap", true)).To(Succeed())
		Expect(sut.Get().SelectedOptions).To(Equal([]string{"minimap", "shaders"}))

		Expect(sut.ToggleOption(GinkgoT().Context(), "performance", true)).To(Succeed())
		Expect(sut.Get().SelectedOptions).To(Equal([]string{"minimap", "performance"}))

		Expect(sut.ToggleOption(GinkgoT().Context(), "minimap", false)).To(Succeed())
		Expect(sut.Get().SelectedOptions).To(Equal([]string{"performance"}))

		Expect(sut.ToggleOption(GinkgoT().Context(), "unknown", true)).To(MatchError(store.ErrUnknownOption))
	})
})
