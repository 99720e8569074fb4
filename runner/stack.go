package runner

// frame is one open context. Contexts are identified by the source line
// of their opening statement, which is unique per declaration and stable
// across passes over the group body.
type frame struct {
	line      int
	desc      string
	printed   bool
	requested bool
}

// contextStack tracks the contexts that are open across passes of a
// group body. The stack outlives individual passes: frames are pushed
// the first time a context is discovered and popped, one per pass, when
// a pass finds nothing new inside them. index walks the stack during a
// pass, re-entering frames that are still open; top is the last live
// frame. frames[0] is the root and can never be popped.
type contextStack struct {
	frames []frame
	index  int
	top    int
}

func newContextStack() *contextStack {
	return &contextStack{frames: []frame{{desc: "<root context>"}}}
}

// rewind restarts the walk from the root. Called before each pass.
func (c *contextStack) rewind() {
	c.index = 0
}

// clear drops every frame except the root. Called between groups.
func (c *contextStack) clear() {
	c.top = 0
	c.index = 0
	c.frames = c.frames[:1]
}

func (c *contextStack) push(f frame) {
	c.top++
	c.index = c.top
	if len(c.frames) <= c.top {
		c.frames = append(c.frames, f)
	} else {
		c.frames[c.top] = f
	}
}

func (c *contextStack) pop() {
	c.frames = c.frames[:c.top]
	c.top--
	c.index = c.top
}

func (c *contextStack) topFrame() *frame {
	return &c.frames[c.top]
}
