// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

//go:build integration

package auth_test

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/passgate/passgate/internal/auth"
	"github.com/passgate/passgate/internal/client"
	"github.com/passgate/passgate/internal/flow"
)

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

func lastCode() string {
	msg, ok := env.outbox.last()
	Expect(ok).To(BeTrue(), "no reset mail sent")
	code := codePattern.FindString(msg.Text)
	Expect(code).NotTo(BeEmpty(), "reset mail carries no code")
	return code
}

var _ = Describe("Account lifecycle over HTTP", func() {
	var (
		ctx context.Context
		api *client.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		resetTables(ctx, env.pool)
		api = client.New(env.baseURL())
	})

	It("signs up, logs in, resets the password and logs in again", func() {
		ctrl := flow.New(api)

		Expect(ctrl.GoSignup()).To(Succeed())
		Expect(ctrl.Signup(ctx, "Ada", "ada@example.com", "first-pass")).To(Succeed())
		Expect(ctrl.View()).To(Equal(flow.ViewLogin))
		Expect(ctrl.Notice()).To(HaveSuffix("Please log in."))

		Expect(ctrl.Login(ctx, "ada@example.com", "first-pass")).To(Succeed())
		Expect(ctrl.View()).To(Equal(flow.ViewDashboard))
		token := ctrl.Session().Token

		me, err := api.Me(ctx, token)
		Expect(err).NotTo(HaveOccurred())
		Expect(me.Email).To(Equal("ada@example.com"))

		Expect(ctrl.Logout()).To(Succeed())
		Expect(ctrl.GoForgotPassword()).To(Succeed())
		Expect(ctrl.RequestReset(ctx, "ada@example.com")).To(Succeed())
		Expect(ctrl.View()).To(Equal(flow.ViewVerifyOTP))

		Expect(ctrl.VerifyReset(ctx, lastCode(), "second-pass")).To(Succeed())
		Expect(ctrl.View()).To(Equal(flow.ViewLogin))
		Expect(ctrl.ErrorMessage()).To(BeEmpty())

		Expect(ctrl.Login(ctx, "ada@example.com", "first-pass")).To(Succeed())
		Expect(ctrl.View()).To(Equal(flow.ViewLogin))
		Expect(ctrl.ErrorMessage()).NotTo(BeEmpty())

		Expect(ctrl.Login(ctx, "ada@example.com", "second-pass")).To(Succeed())
		Expect(ctrl.View()).To(Equal(flow.ViewDashboard))

		By("keeping tokens issued before the reset valid")
		_, err = api.Me(ctx, token)
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects a duplicate signup", func() {
		_, err := api.Signup(ctx, "Ada", "ada@example.com", "pw")
		Expect(err).NotTo(HaveOccurred())

		_, err = api.Signup(ctx, "Ada again", "ada@example.com", "pw")
		var apiErr *client.APIError
		Expect(err).To(BeAssignableToTypeOf(apiErr))
		Expect(err.(*client.APIError).Status).To(Equal(400))
	})

	It("answers a reset request for an unknown email without sending mail", func() {
		before, _ := env.outbox.last()
		msg, err := api.RequestReset(ctx, "nobody@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(msg).NotTo(BeEmpty())
		after, _ := env.outbox.last()
		Expect(after).To(Equal(before))
	})

	It("accepts a reset code exactly once under concurrency", func() {
		_, err := api.Signup(ctx, "Ada", "ada@example.com", "pw")
		Expect(err).NotTo(HaveOccurred())
		_, err = api.RequestReset(ctx, "ada@example.com")
		Expect(err).NotTo(HaveOccurred())
		code := lastCode()

		var (
			wg        sync.WaitGroup
			successes atomic.Int32
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				if _, err := api.VerifyReset(ctx, "ada@example.com", code, "new-pass"); err == nil {
					successes.Add(1)
				}
			}()
		}
		wg.Wait()
		Expect(successes.Load()).To(Equal(int32(1)))
	})
})

var _ = Describe("Expired code sweep", func() {
	It("removes only codes past the retention window", func() {
		ctx := context.Background()
		resetTables(ctx, env.pool)
		now := time.Now()

		stale, err := auth.NewOtpRecord("a@example.com", "111111", now.Add(-72*time.Hour), time.Minute)
		Expect(err).NotTo(HaveOccurred())
		live, err := auth.NewOtpRecord("a@example.com", "222222", now, 10*time.Minute)
		Expect(err).NotTo(HaveOccurred())
		Expect(env.otps.Create(ctx, stale)).To(Succeed())
		Expect(env.otps.Create(ctx, live)).To(Succeed())

		sweeper, err := auth.NewSweeper(env.otps, auth.WithRetention(24*time.Hour))
		Expect(err).NotTo(HaveOccurred())
		n, err := sweeper.SweepOnce(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))

		rec, err := env.otps.FindLatestValid(ctx, "a@example.com", "222222", now)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.ID).To(Equal(live.ID))
	})
})
