/*
Package sandbox provides the runtime the environment runs inside.

# Overview

A Runtime owns one isolated workspace for the lifetime of the server. It is
booted once, receives the initial project tree through Mount, and then
spawns processes and accepts file writes against that workspace:

	rt := sandbox.NewLocal(cfg, logger)
	if err := rt.Boot(ctx); err != nil { ... }
	if err := rt.Mount(ctx, tree); err != nil { ... }
	proc, err := rt.Spawn(ctx, "npm", []string{"install"}, sandbox.SpawnOptions{})

# Processes

Batch processes merge stdout and stderr into one ordered output stream.
Processes spawned with a terminal size run on a PTY and additionally expose
an input sink and Resize. Every process publishes its exit code once on
Exit(); deaths by signal report 128+signal.

# Readiness

The local runtime watches a set of TCP ports (configured, plus any
localhost URL printed by a spawned process). A port that becomes reachable
emits a ReadyEvent to every OnServerReady subscriber; a port that goes away
and comes back emits again.

# Errors

Failures carry a Kind (boot, mount, spawn, write) and match the sentinels
ErrBoot, ErrMount, ErrSpawn and ErrWrite through errors.Is.
*/
package sandbox
