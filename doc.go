// Package pgjobq is a persistent job queue engine on top of PostgreSQL.
//
// Producers enqueue jobs with [Client.Schedule], tagging each with a queue
// name and a priority. Any number of independent worker processes call
// [Client.Acquire] against the same table; FOR UPDATE SKIP LOCKED guarantees
// that each eligible job is handed to at most one caller, without any
// application-level locking. Workers report the outcome with
// [Client.Complete] or [Client.Fail].
//
// Within a queue, jobs are served highest priority first, FIFO within the
// same priority. Queues are independent ordering domains; there is no
// ordering guarantee across queues.
//
// A Client is bound to one (schema, table) pair, so several logical queue
// tables can coexist in one database by constructing one Client per table.
// [Client.Initialize] creates and upgrades the table via embedded versioned
// migrations and is safe to call on every process start.
//
// The engine never retries on its own: store errors propagate to the caller,
// and a job that was acquired but never completed or failed stays acquired.
package pgjobq
