// Package core provides the filtering session: the business logic for
// removing rows from a loaded table by column-scoped match rules.
//
// The package is independent of any UI or transport layer. The HTTP server
// and the command-line tool both drive it through the same five operations.
//
// # Workflow
//
// A [Session] moves through three states:
//
//	Empty    --LoadFile-->      Loaded
//	Loaded   --Filter-->        Filtered
//	Filtered --ConfirmFilter--> Loaded
//
// [Session.Filter] never touches the committed table. It stages a new table
// of the surviving rows together with the removed rows as a [Pending] result.
// Only [Session.ConfirmFilter] swaps the staged table in. A second Filter
// before confirming simply replaces the first staged result, and loading a
// new file discards it.
//
// # Rules
//
// Two rule kinds exist. [AddressPrefix] removes rows whose field starts with
// any configured prefix, [EmailSuffix] those whose field ends with any
// configured suffix. Both compare lowercased text. An empty term list never
// matches.
//
// # Status Reporting
//
// Operations never return Go errors or panic. Each returns a sentinel value
// (false, an empty slice, or 0) together with a [Status] describing what
// happened. [Status.Err] converts a failure into an error whose [Kind] can be
// checked with errors.Is against the Err* sentinels, and [MapError] turns it
// into a user-facing message with a support code:
//
//	LOAD001, SAVE001          file I/O
//	SES001, SES002            session state
//	FLT001, FLT002            filter arguments
package core
