// Package orderbook holds the per-instrument book: price buckets with FIFO
// time priority, the two price-ordered sides, the order-id index and the
// last processed input offset. The book is deterministic and single-writer;
// all concurrency discipline lives in the service layer.
package orderbook
