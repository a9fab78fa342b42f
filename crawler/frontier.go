package crawler

// frontier is the per-crawl FIFO of folder URLs plus the visited set.
// It is owned by a single Crawl call and never shared.
type frontier struct {
	queue   []string
	visited map[string]struct{}
	limit   int
}

func newFrontier(start string, limit int) *frontier {
	return &frontier{
		queue:   []string{start},
		visited: make(map[string]struct{}),
		limit:   limit,
	}
}

// next pops the next unvisited folder and marks it visited.
// It returns false once the queue drains or the visit limit is reached.
func (f *frontier) next() (string, bool) {
	for len(f.queue) > 0 && len(f.visited) < f.limit {
		u := f.queue[0]
		f.queue[0] = ""
		f.queue = f.queue[1:]
		if _, ok := f.visited[u]; ok {
			continue
		}
		f.visited[u] = struct{}{}
		return u, true
	}
	return "", false
}

// push enqueues u unless it was already visited.
func (f *frontier) push(u string) bool {
	if _, ok := f.visited[u]; ok {
		return false
	}
	f.queue = append(f.queue, u)
	return true
}

func (f *frontier) visitedCount() int {
	return len(f.visited)
}

func (f *frontier) pending() int {
	return len(f.queue)
}
