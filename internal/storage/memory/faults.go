package memory

import "github.com/storepins/pinboard/pkg/core"

// The methods in this file make Backend usable as a test double by other
// packages: they seed documents and inject failures. Production wiring
// never calls them.

// InsertCalls returns how many Insert calls were made, failed ones included
func (b *Backend) InsertCalls() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.inserts
}

// Seed appends documents as-is, bypassing id and timestamp assignment
func (b *Backend) Seed(docs ...core.Document) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, doc := range docs {
		b.index[doc.ID] = len(b.docs)
		b.docs = append(b.docs, doc)
	}
}

// FailInserts makes every following Insert and Update return err. Pass nil
// to restore normal behaviour.
func (b *Backend) FailInserts(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.insertErr = err
}

// FailListAfter makes ListAll return the first n documents together with
// err. Pass a nil err to restore normal behaviour.
func (b *Backend) FailListAfter(n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listFailAfter = n
	b.listErr = err
}
