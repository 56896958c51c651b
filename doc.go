/*
Package xrpl is a small client for the XRP Ledger websocket API, with the
intention of covering what a wallet backend needs: account lookups, XRP
payments and a live feed of an account's transactions.

Every query and payment runs on its own connection, which is closed before
the call returns. An account stream owns one connection for as long as it is
subscribed. Amounts are drops (1 XRP = 1,000,000 drops) everywhere except
the XRPToDrops and DropsToXRP helpers.

Keys, addresses and the binary transaction format are implemented here so
payments can be signed locally; secrets never leave the process.
*/

package xrpl
