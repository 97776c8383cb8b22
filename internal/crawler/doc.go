// Package crawler holds the domain model of the catalog ingester: the product
// record, fetch results, the per-item outcome types and the failure taxonomy
// shared by discovery, detail fetching and image acquisition.
package crawler
