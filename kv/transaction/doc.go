package transaction

// The transaction package groups tinystm's command layer. Each command (see the commands subpackage) takes a client
// request, decoded by kv/server, and turns it into one or more transactions run by the retry driver in kv/stm.
//
// A command never sees a conflict: the driver re-runs a transaction body until its commit succeeds, so a command
// either returns the result of one committed attempt or the error its body returned. Bodies must therefore be free of
// side effects outside the attempt they are given; effects which have to leave the process, such as the Redis
// write-through, are driven from committed writes only.
//
// Objects are addressed by strings of the form `0x<n>`. ProcessTx reads the objects a transaction declares, runs the
// program named by its code hash on their values followed by the arguments, and writes the program's outputs back to
// the objects in order.
