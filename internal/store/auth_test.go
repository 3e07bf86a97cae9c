package store_test

import (
	"errors"

	"github.com/kofuk/premises-launcher/internal/host"
	"github.com/kofuk/premises-launcher/internal/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Auth", func() {
	var (
		ctrl *gomock.Controller
		h    *host.MockHost
		sut  *store.Auth
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		h = host.NewMockHost(ctrl)
		sut = store.NewAuth(h)
	})

	It("should log in offline with the trimmed username", func() {
		h.EXPECT().Invoke(gomock.Any(), host.MethodLoginOffline, host.LoginOfflineInput{Username: "player"}, nil).Return(nil)

		Expect(sut.LoginOffline(GinkgoT().Context(), " player ")).To(Succeed())
	})

	DescribeTable("should reject an empty username without asking the host", func(username string) {
		Expect(sut.LoginOffline(GinkgoT().Context(), username)).To(MatchError(store.ErrEmptyUsername))
	},
		Entry("Empty", ""),
		Entry("Blank", "   "),
	)

	It("should surface the reason of a failed Microsoft login", func() {
		h.EXPECT().Invoke(gomock.Any(), host.MethodLoginMsa, nil, nil).Return(&host.RequestError{
			Method: host.MethodLoginMsa,
			Reason: "user cancelled",
			Err:    errors.New("RPCError: -32000: Server error: user cancelled"),
		})

		err := sut.LoginMicrosoft(GinkgoT().Context())

		var reqErr *host.RequestError
		Expect(errors.As(err, &reqErr)).To(BeTrue())
		Expect(reqErr.Reason).To(Equal("user cancelled"))
	})
})
