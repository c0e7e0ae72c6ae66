package goshare

import "fmt"

// preExecHooks holds callbacks registered for use as Command.PreExecName
// targets. A Go closure captured in the calling process cannot be handed
// across a real execve the way this package's reexec-based init stage
// works: the hook has to already exist, by name, inside the very binary
// that gets re-executed. Registering hooks from an init() function (which
// runs unconditionally, before main, in both the original process and its
// re-exec'd copy) is the idiomatic way to satisfy that — the same
// constraint reexec.Register itself imposes on its handlers.
var preExecHooks = map[string]func() error{}

// RegisterPreExecHook makes f available to PreExecName under name. Call it
// from an init() function so the registration exists in both the spawning
// process and the process image that re-execs itself to run the child
// setup stage.
func RegisterPreExecHook(name string, f func() error) {
	preExecHooks[name] = f
}

func lookupPreExecHook(name string) (func() error, error) {
	f, ok := preExecHooks[name]
	if !ok {
		return nil, fmt.Errorf("goshare: no pre-exec hook registered under %q", name)
	}
	return f, nil
}
