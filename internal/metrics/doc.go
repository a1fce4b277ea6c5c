// Package metrics computes the dashboard tile values from a loaded
// metrics table. Every function is pure: tables go in, numbers come out,
// and nothing here touches the disk, the clock, or any shared state. The
// service layer decides what "today" means and passes it in.
package metrics
