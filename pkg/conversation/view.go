package conversation

// ViewHooks are the side effects a screen wants while a turn it started is
// running. Any of them may be nil.
type ViewHooks struct {
	OnThinking         func(thinking bool)
	OnAssistantStarted func()
	OnStreamedText     func(text string)
}

type attachment struct {
	id    string
	gen   uint64
	hooks ViewHooks
}

// View is a screen attached to one conversation. Hooks of turns started
// while a view was attached fire only as long as that same view stays
// attached; registry state is updated either way.
type View struct {
	c   *Controller
	att *attachment
}

// Attach makes a new view current for conversation id and returns it. Any
// previously attached view goes stale.
func (c *Controller) Attach(id string, hooks ViewHooks) *View {
	c.viewMu.Lock()
	defer c.viewMu.Unlock()
	c.viewGen++
	att := &attachment{id: id, gen: c.viewGen, hooks: hooks}
	c.active = att
	return &View{c: c, att: att}
}

// Detach stales v. Calling it on a view that is already stale does nothing.
func (v *View) Detach() {
	v.c.viewMu.Lock()
	defer v.c.viewMu.Unlock()
	if v.c.active == v.att {
		v.c.active = nil
	}
}

// Current reports whether v is still the attached view.
func (v *View) Current() bool {
	v.c.viewMu.Lock()
	defer v.c.viewMu.Unlock()
	return v.c.active == v.att
}

func (v *View) ConversationID() string {
	return v.att.id
}

// captureView returns the view attached to conversation id, if any.
func (c *Controller) captureView(id string) *attachment {
	c.viewMu.Lock()
	defer c.viewMu.Unlock()
	if c.active == nil || c.active.id != id {
		return nil
	}
	return c.active
}

// fire runs fn with the hooks of att when att is still the attached view.
func (c *Controller) fire(att *attachment, fn func(ViewHooks)) {
	if att == nil {
		return
	}
	c.viewMu.Lock()
	current := c.active == att
	c.viewMu.Unlock()
	if current {
		fn(att.hooks)
	}
}
