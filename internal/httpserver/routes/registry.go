package routes

import (
	"fmt"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkdeck/internal/httpserver/deps"
)

// Mounter attaches one group of routes to the router.
type Mounter func(r chi.Router, d deps.Deps)

type group struct {
	name  string
	mount Mounter
}

var groups = map[string]Mounter{}

// Register adds a named route group. Groups are registered from init
// functions; registering the same name twice is a programming error.
func Register(name string, m Mounter) {
	if _, dup := groups[name]; dup {
		panic(fmt.Sprintf("routes: group %q registered twice", name))
	}
	groups[name] = m
}

// Groups returns the registered group names in mount order.
func Groups() []string {
	out := make([]string, 0, len(groups))
	for _, g := range sorted() {
		out = append(out, g.name)
	}
	return out
}

// MountAll mounts every registered group, sorted by name so the resulting
// router does not depend on file init order.
func MountAll(r chi.Router, d deps.Deps) {
	for _, g := range sorted() {
		g.mount(r, d)
	}
}

func sorted() []group {
	out := make([]group, 0, len(groups))
	for name, m := range groups {
		out = append(out, group{name: name, mount: m})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
