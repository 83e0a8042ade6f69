// Package jobs tracks background ingestion jobs.
//
// A Registry holds recent job states, bounded by capacity and TTL. A
// Runner executes jobs on an ants worker pool; each running job writes its
// own registry entry through an Observer, while request handlers only read
// snapshots.
//
// Job status moves queued -> processing -> completed or failed. A queued
// job can also fail directly when its upload cannot be opened. Any other
// transition is rejected and leaves the state unchanged.
package jobs
