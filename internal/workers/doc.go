/*
Package workers sizes engine thread counts in containerized environments.

runtime.NumCPU reports the host's CPUs, while GOMAXPROCS follows the
container's CPU quota (Go 1.19+). Thread counts handed to the encoder are
derived from GOMAXPROCS so a pod limited to two cores on a 64-core node
does not start a 64-thread encode:

	threads := workers.ForCPU(8) // at most 8, at least 1

Operators can pin the value with ENGINE_THREADS:

	env:
	- name: ENGINE_THREADS
	  value: "2"

Invalid or non-positive overrides are ignored and the automatic value is
used. The limit passed by the caller still applies to an override.
*/
package workers
