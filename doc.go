package tinystm

/*
TinySTM is an in-memory, versioned key/value memory with optimistic, software transactional concurrency in the style
of Block-STM. Transactions run speculatively against a shared store, record what they read and buffer what they write,
and commit only if every value they read is still current. A transaction which loses a race is simply run again.

Building TinySTM produces two executables: tinystm-server, which serves the memory over HTTP/JSON, and tinystm-bench,
which runs transfer workloads against an in-process memory and reports where the time went.

The `tinystm` module is organized into the following packages:

* `kv/stm`: the versioned store, transaction attempts, the commit protocol and the retry driver.
* `kv/stm/latches`: per-key latches, used when commits are serialized.
* `kv/stm/primitive`: the values held in the memory (scalars, tuples and empty).
* `kv/executor`: the registry of deterministic programs a transaction runs, such as `0xtransfer`.
* `kv/transaction/commands`: the operations exposed to clients, built on the retry driver.
* `kv/writethrough`: asynchronous publication of committed writes to Redis.
* `kv/server`: the HTTP command server.
* `kv/config`: configuration of the server.
* `log`: logging.
*/
