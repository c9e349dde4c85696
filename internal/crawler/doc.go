// Package crawler implements the sequential crawl controller for a paginated
// records portal: the record log, the error taxonomy, the batch controller,
// and the session runner that restarts batches from the last checkpoint.
package crawler
