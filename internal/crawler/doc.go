// Package crawler defines the channel record, edge and fetch types shared by
// the graph store, the YouTube fetcher adapter, the scheduler and the
// snapshot writer, along with the collaborator interfaces they depend on.
package crawler
