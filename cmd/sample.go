package main

import (
	"github.com/gspec/gspec/registry"
	"github.com/gspec/gspec/runner"
	"github.com/gspec/gspec/sandbox"
)

// A small built-in suite so the binary demonstrates the DSL end to end.
// Real projects register their own suites and build their own main.

func init() {
	registry.MustRegister(runner.NewSuite("sample",
		runner.NewGroup("arithmetic", func(t *runner.T) {
			base := 40

			t.It("adds", func() {
				t.ExpectEqual(base+2, 42)
			})

			t.Context("with a larger base", func() {
				base = 400

				t.It("still adds", func() {
					t.ExpectEqual(base+20, 420)
				})
			})
		}),

		runner.NewGroup("allocations", func(t *runner.T) {
			var p sandbox.Ptr

			t.Context("with a live allocation", func() {
				p = t.Alloc(32)

				t.It("starts uninitialized", func() {
					t.Expect(t.Bytes(p, 1)[0] == 'N', "fresh bytes carry the alloc fill")
				})

				t.It("counts the allocation", func() {
					t.ExpectEqual(t.AllocCount(), 1)
				})

				t.After(func() {
					t.Free(p)
				})
			})
		}),
	))
}
