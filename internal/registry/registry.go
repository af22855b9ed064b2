package registry

import (
	"sort"
	"sync"

	"github.com/kevinfinalboss/VoidMod/internal/types"
)

var (
	mu       sync.RWMutex
	commands = make(map[string]*types.Command)
)

// RegisterCommand is called from the init of each command package.
func RegisterCommand(cmd *types.Command) {
	mu.Lock()
	defer mu.Unlock()
	commands[cmd.Name] = cmd
}

// Commands returns the registered commands sorted by name.
func Commands() []*types.Command {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]*types.Command, 0, len(commands))
	for _, cmd := range commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
