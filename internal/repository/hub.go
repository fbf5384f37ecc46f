package repository

import (
	"context"
	"sync"

	rm "rehab_monitor"
)

// collectionWatch is a live query over one collection.
type collectionWatch struct {
	query Query
	feed  *feed[QuerySnapshot]
}

// hub tracks in-process subscribers for stores whose writes all pass
// through this process. Callers serialize write+publish so per-document
// order holds.
type hub struct {
	mu    sync.Mutex
	docs  map[rm.DocPath]map[*feed[DocumentSnapshot]]struct{}
	colls map[string]map[*collectionWatch]struct{}
}

func newHub() *hub {
	return &hub{
		docs:  make(map[rm.DocPath]map[*feed[DocumentSnapshot]]struct{}),
		colls: make(map[string]map[*collectionWatch]struct{}),
	}
}

func (h *hub) watchDoc(ctx context.Context, path rm.DocPath) *feed[DocumentSnapshot] {
	// Registered under the lock so an already-cancelled ctx cannot run
	// onClose before the feed is in the map.
	h.mu.Lock()
	defer h.mu.Unlock()

	var f *feed[DocumentSnapshot]
	f = newFeed[DocumentSnapshot](ctx, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.docs[path], f)
		if len(h.docs[path]) == 0 {
			delete(h.docs, path)
		}
	})
	if h.docs[path] == nil {
		h.docs[path] = make(map[*feed[DocumentSnapshot]]struct{})
	}
	h.docs[path][f] = struct{}{}
	return f
}

func (h *hub) watchCollection(ctx context.Context, collection string, q Query) *collectionWatch {
	h.mu.Lock()
	defer h.mu.Unlock()

	w := &collectionWatch{query: q}
	w.feed = newFeed[QuerySnapshot](ctx, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.colls[collection], w)
		if len(h.colls[collection]) == 0 {
			delete(h.colls, collection)
		}
	})
	if h.colls[collection] == nil {
		h.colls[collection] = make(map[*collectionWatch]struct{})
	}
	h.colls[collection][w] = struct{}{}
	return w
}

func (h *hub) publishDoc(doc Document) {
	h.mu.Lock()
	feeds := make([]*feed[DocumentSnapshot], 0, len(h.docs[doc.Path]))
	for f := range h.docs[doc.Path] {
		feeds = append(feeds, f)
	}
	h.mu.Unlock()

	for _, f := range feeds {
		f.push(DocumentSnapshot{Document: cloneDocument(doc)})
	}
}

func (h *hub) publishError(path rm.DocPath, err error) {
	h.mu.Lock()
	feeds := make([]*feed[DocumentSnapshot], 0, len(h.docs[path]))
	for f := range h.docs[path] {
		feeds = append(feeds, f)
	}
	h.mu.Unlock()

	for _, f := range feeds {
		f.push(DocumentSnapshot{Document: Document{Path: path}, Err: err})
	}
}

// collectionWatchers returns the live queries registered on collection.
func (h *hub) collectionWatchers(collection string) []*collectionWatch {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*collectionWatch, 0, len(h.colls[collection]))
	for w := range h.colls[collection] {
		out = append(out, w)
	}
	return out
}

func (h *hub) hasDocWatchers(path rm.DocPath) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.docs[path]) > 0
}

// hasCollectionWatchers lets stores skip re-querying when nobody listens.
func (h *hub) hasCollectionWatchers(collection string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.colls[collection]) > 0
}

func cloneDocument(d Document) Document {
	if d.Fields != nil {
		d.Fields = d.Fields.Clone()
	}
	return d
}
