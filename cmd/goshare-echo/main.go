// Command goshare-echo is a minimal target binary for tests: it reports
// its pid, uid, gid, working directory, arguments and environment, then
// exits. It gives Spawn an end-to-end target that needs no /bin/sh and no
// particular distro's userland; no package test runs it.
package main

import (
	"fmt"
	"os"
	"sort"
)

func main() {
	fmt.Printf("pid=%d uid=%d gid=%d\n", os.Getpid(), os.Getuid(), os.Getgid())
	wd, _ := os.Getwd()
	fmt.Printf("workdir=%s\n", wd)
	fmt.Printf("args=%v\n", os.Args[1:])

	env := os.Environ()
	sort.Strings(env)
	for _, kv := range env {
		fmt.Printf("env:%s\n", kv)
	}
}
