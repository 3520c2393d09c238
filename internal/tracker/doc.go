// Package tracker is an HTTP tracker client: announce with compact or
// dictionary peer lists, and scrape. Responses are decoded with the bencode
// package straight into typed records.
package tracker
