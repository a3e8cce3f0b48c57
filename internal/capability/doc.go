// Package capability computes the host encode policy: thread counts per
// processing mode, whether speed presets are pushed toward faster rungs,
// and which codecs can honor a lossless request.
//
// A host is constrained when it cannot run threads in parallel, is a
// mobile device, has two or fewer cores, or has under 2 GiB of memory.
// Constrained hosts encode single-threaded and move every speed preset two
// rungs along slow, medium, fast, faster, veryfast, ultrafast.
package capability
