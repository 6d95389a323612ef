// Package capture defines the Transaction value the correlation engine
// consumes and the readers that replay recorded traffic.
//
// Two on-disk formats are supported: HTTP Archive documents (.har), as
// exported by browsers and intercepting proxies, and JSON Lines (.jsonl),
// one Record per line. The same Record shape is accepted by the live ingest
// server. Readers never interpret payloads; they only yield transactions in
// arrival order and report unreadable records as ErrCorrupt.
package capture
