// Command dinephil runs the dining philosophers problem with a pluggable fork
// acquisition policy.
//
// Philosophers sit around a table, with one fork between each pair of
// neighbours, and need both adjacent forks to eat. The naive policy (take
// left, then right) can deadlock; the serialized and backoff policies cannot.
// A watchdog reports stalls along with the circular wait found in the
// wait-for graph, and the protocol of each policy can be exported as CFSMs
// for global graph synthesis (POPL'15, Lange, Tuosto, Yoshida).
package main
