// Package brokerfolio reconciles a broker's transaction export, or its live
// position snapshot, into the currently held portfolio valued in USD.
//
// The reconciliation is a chain of pure steps over immutable records:
//   - Symbols are canonicalized: the peso and dollar listings of a cedear
//     collapse into one symbol, caución lines are dropped.
//   - Quantities are signed by operation: disposals are negative.
//   - The average cost of every symbol is computed from acquisitions only.
//   - Signed quantities are netted per symbol and exited positions dropped.
//   - Cost bases and live quotes are converted to USD with the CCL rate,
//     fetched once per run.
//   - Positions are enriched with live quotes, a failing quote only zeroes
//     the affected entry.
//
// The remote collaborators (export reader, broker API, FX and quote
// providers) live in their own packages and plug in through the FXProvider,
// QuoteProvider, TransactionSource and HoldingsProvider interfaces.
//
// This package serves as the foundational logic for the `pfl` command-line
// tool.
package brokerfolio
