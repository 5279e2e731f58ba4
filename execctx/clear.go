package execctx

import "sync"

// Clear wipes output/exception and re-arms the completion signal,
// preserving args and all data scopes. When keepChildren is false,
// children are also discarded. Clear is used by the retry paths
// (tool.BaseTool.Retry and the flow combinators' Retry overrides); it
// never clears executing unless asked to.
func (c *Context) Clear(executing bool, keepChildren bool) {
	c.mu.Lock()
	c.output = nil
	c.outputSet = false
	c.exception = nil
	c.cancelled = false
	c.executing = executing
	if !keepChildren {
		c.children = nil
	}
	c.done = make(chan struct{})
	c.doneOnce = sync.Once{}
	c.mu.Unlock()
}
