// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

//go:build integration

package api_test

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/taskforge/taskforge/internal/auth"
)

var _ = Describe("Sessions", func() {
	BeforeEach(func() {
		env.truncate()
	})

	Describe("registering", func() {
		It("returns the user and a working token", func() {
			s := register("Jess@Example.com")
			Expect(s.User.Email).To(Equal("jess@example.com"))

			var me auth.PublicUser
			Expect(call(http.MethodGet, "/users/me", s.Token, nil, &me)).To(Equal(http.StatusOK))
			Expect(me.ID).To(Equal(s.User.ID))
		})

		It("rejects an email that differs only in case", func() {
			register("jess@example.com")
			status := call(http.MethodPost, "/users", "", map[string]any{
				"name": "Other", "email": "JESS@example.com", "password": "Secret123",
			}, nil)
			Expect(status).To(Equal(http.StatusConflict))
		})
	})

	Describe("logging in from several devices", func() {
		It("keeps each token independently revocable", func() {
			first := register("multi@example.com")
			second, status := login("multi@example.com", "Secret123")
			Expect(status).To(Equal(http.StatusOK))
			third, _ := login("multi@example.com", "Secret123")

			Expect(call(http.MethodPost, "/users/logout", second.Token, nil, nil)).To(Equal(http.StatusNoContent))
			Expect(call(http.MethodGet, "/users/me", second.Token, nil, nil)).To(Equal(http.StatusUnauthorized))
			Expect(call(http.MethodGet, "/users/me", first.Token, nil, nil)).To(Equal(http.StatusOK))

			Expect(call(http.MethodPost, "/users/logoutAll", first.Token, nil, nil)).To(Equal(http.StatusNoContent))
			Expect(call(http.MethodGet, "/users/me", first.Token, nil, nil)).To(Equal(http.StatusUnauthorized))
			Expect(call(http.MethodGet, "/users/me", third.Token, nil, nil)).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("throttling", func() {
		It("locks the account after repeated failures", func() {
			register("lock@example.com")
			before := testutil.ToFloat64(env.metrics.LoginsTotal.WithLabelValues(auth.LoginLocked))

			for range 3 {
				_, status := login("lock@example.com", "wrong-guess")
				Expect(status).To(Equal(http.StatusBadRequest))
			}
			_, status := login("lock@example.com", "Secret123")
			Expect(status).To(Equal(http.StatusTooManyRequests))
			Expect(testutil.ToFloat64(env.metrics.LoginsTotal.WithLabelValues(auth.LoginLocked))).To(Equal(before + 1))
		})
	})

	Describe("changing the password", func() {
		It("keeps existing sessions and switches the login secret", func() {
			s := register("pw@example.com")
			newPassword := "BrandNew99"
			Expect(call(http.MethodPatch, "/users/me", s.Token, map[string]any{"password": newPassword}, nil)).
				To(Equal(http.StatusOK))

			Expect(call(http.MethodGet, "/users/me", s.Token, nil, nil)).To(Equal(http.StatusOK))
			_, status := login("pw@example.com", "Secret123")
			Expect(status).To(Equal(http.StatusBadRequest))
			_, status = login("pw@example.com", newPassword)
			Expect(status).To(Equal(http.StatusOK))
		})
	})

	Describe("pruning", func() {
		It("leaves live tokens alone", func() {
			s := register("prune@example.com")
			_, err := env.sessions.PruneExpired(env.ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(call(http.MethodGet, "/users/me", s.Token, nil, nil)).To(Equal(http.StatusOK))
		})
	})

	Describe("deleting the account", func() {
		It("revokes every token and frees the email", func() {
			s := register("gone@example.com")
			Expect(call(http.MethodPost, "/tasks", s.Token, map[string]any{"description": "orphan?"}, nil)).
				To(Equal(http.StatusCreated))

			Expect(call(http.MethodDelete, "/users/me", s.Token, nil, nil)).To(Equal(http.StatusOK))
			Expect(call(http.MethodGet, "/users/me", s.Token, nil, nil)).To(Equal(http.StatusUnauthorized))

			var count int
			Expect(env.pool.QueryRow(env.ctx, `SELECT COUNT(*) FROM tasks`).Scan(&count)).To(Succeed())
			Expect(count).To(BeZero())

			register("gone@example.com")
		})
	})
})
