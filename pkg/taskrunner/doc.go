// Package taskrunner hosts the shared abstractions for applying a lifecycle
// operation to a set of packages. It exposes the `Executor` interface plus
// helpers (`Factory`, `Resolve`) so CLI packages can inject Dependencies once
// and obtain a runner, while unit tests can swap in fakes. `BuildDependencies`
// assembles the shell, subprocess, tool and environment collaborators that
// every Rake package driver shares.
package taskrunner
