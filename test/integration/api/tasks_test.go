// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

//go:build integration

package api_test

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/taskforge/taskforge/internal/task"
)

var _ = Describe("Tasks", func() {
	var owner, other session

	BeforeEach(func() {
		env.truncate()
		owner = register("owner@example.com")
		other = register("other@example.com")
		for _, d := range []string{"b task", "a task", "c task"} {
			Expect(call(http.MethodPost, "/tasks", owner.Token, map[string]any{"description": d}, nil)).
				To(Equal(http.StatusCreated))
		}
	})

	It("sorts and pages the owner's tasks", func() {
		var page []task.Task
		Expect(call(http.MethodGet, "/tasks?sortBy=description:asc&limit=2&skip=1", owner.Token, nil, &page)).
			To(Equal(http.StatusOK))
		Expect(page).To(HaveLen(2))
		Expect(page[0].Description).To(Equal("b task"))
		Expect(page[1].Description).To(Equal("c task"))
	})

	It("filters by completion", func() {
		var all []task.Task
		call(http.MethodGet, "/tasks", owner.Token, nil, &all)
		Expect(all).To(HaveLen(3))

		Expect(call(http.MethodPatch, "/tasks/"+all[0].ID.String(), owner.Token, map[string]any{"completed": true}, nil)).
			To(Equal(http.StatusOK))

		var done []task.Task
		call(http.MethodGet, "/tasks?completed=true", owner.Token, nil, &done)
		Expect(done).To(HaveLen(1))
		Expect(done[0].ID).To(Equal(all[0].ID))
	})

	It("hides tasks from other users", func() {
		var all []task.Task
		call(http.MethodGet, "/tasks", owner.Token, nil, &all)
		id := all[0].ID.String()

		var none []task.Task
		Expect(call(http.MethodGet, "/tasks", other.Token, nil, &none)).To(Equal(http.StatusOK))
		Expect(none).To(BeEmpty())
		Expect(call(http.MethodGet, "/tasks/"+id, other.Token, nil, nil)).To(Equal(http.StatusNotFound))
		Expect(call(http.MethodPatch, "/tasks/"+id, other.Token, map[string]any{"completed": true}, nil)).
			To(Equal(http.StatusNotFound))
		Expect(call(http.MethodDelete, "/tasks/"+id, other.Token, nil, nil)).To(Equal(http.StatusNotFound))

		Expect(call(http.MethodDelete, "/tasks/"+id, owner.Token, nil, nil)).To(Equal(http.StatusOK))
		Expect(call(http.MethodGet, "/tasks/"+id, owner.Token, nil, nil)).To(Equal(http.StatusNotFound))
	})
})
