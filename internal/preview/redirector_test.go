package preview

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GriffinCanCode/devbox/internal/sandbox"
	"github.com/GriffinCanCode/devbox/internal/terminal"
	"github.com/GriffinCanCode/devbox/tests/helpers/testutil"
)

func TestHandleRetargetsAndAnnounces(t *testing.T) {
	term := terminal.New(terminal.DefaultConfig(), nil)
	r := New(term, nil)

	var navigated []string
	sub := r.Navigations().Subscribe(func(u string) { navigated = append(navigated, u) })
	defer sub.Unsubscribe()

	assert.Empty(t, r.URL())

	r.Handle(sandbox.ReadyEvent{Port: 3000, URL: "https://a.example"})
	assert.Equal(t, "https://a.example", r.URL())

	r.Handle(sandbox.ReadyEvent{Port: 3001, URL: "https://b.example"})
	r.Handle(sandbox.ReadyEvent{Port: 3001, URL: "https://b.example"})

	assert.Equal(t, "https://b.example", r.URL())
	assert.Equal(t, []string{"https://a.example", "https://b.example", "https://b.example"}, r.History())
	assert.Equal(t, r.History(), navigated)
	assert.Equal(t,
		"Server is ready at https://a.example\r\n"+
			"Server is ready at https://b.example\r\n"+
			"Server is ready at https://b.example\r\n",
		string(term.History()))
}

func TestHandleAfterTerminalDisposed(t *testing.T) {
	term := terminal.New(terminal.DefaultConfig(), nil)
	term.Dispose()
	r := New(term, nil)

	assert.NotPanics(t, func() { r.Handle(sandbox.ReadyEvent{Port: 3000, URL: "http://localhost:3000"}) })
	assert.Equal(t, "http://localhost:3000", r.URL())
}

func TestFollowObservesThenHandles(t *testing.T) {
	rt := testutil.NewFakeRuntime(t)
	term := terminal.New(terminal.DefaultConfig(), nil)
	r := New(term, nil)

	var observed []int
	sub := r.Follow(rt, func(ev sandbox.ReadyEvent) {
		assert.NotEqual(t, ev.URL, r.URL(), "observer runs before the retarget")
		observed = append(observed, ev.Port)
	})

	rt.EmitReady(3000, "http://localhost:3000")
	assert.Equal(t, []int{3000}, observed)
	assert.Equal(t, "http://localhost:3000", r.URL())

	sub.Unsubscribe()
	rt.EmitReady(3001, "http://localhost:3001")
	assert.Equal(t, "http://localhost:3000", r.URL())
	assert.Equal(t, 0, rt.ReadyListeners())
}
